package arena

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/park285/game-arena/internal/agent"
	"github.com/park285/game-arena/internal/domain"
	"github.com/park285/game-arena/internal/rating"
	"github.com/park285/game-arena/internal/rules"
	"github.com/park285/game-arena/internal/rules/chessrules"
	"github.com/park285/game-arena/internal/rules/pokerrules"
	"github.com/park285/game-arena/internal/session"
)

func newTestManager(t *testing.T, provider agent.Provider) (*Manager, *memrepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := rules.NewRegistry()
	registry.Register(chessrules.New())
	registry.Register(pokerrules.NewSeeded(1))
	engine := session.NewEngine(registry, rating.NewCalculator(32))

	repo := NewMemoryRepository().(*memrepo)
	seedTestParticipants(t, repo)

	mgr := NewManager(engine, registry, store, repo, provider, WithAgentTimeout(time.Second))
	return mgr, repo
}

func seedTestParticipants(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	fixtures := []*domain.Participant{
		{ID: "alice", DisplayName: "Alice", Human: true, EloChess: 1400, EloPoker: 1200, CreatedAt: now, UpdatedAt: now},
		{ID: "gpt-4", DisplayName: "GPT-4", Provider: "openai", ModelID: "gpt-4", EloChess: 1600, EloPoker: 1200, CreatedAt: now, UpdatedAt: now},
		{ID: "claude-3", DisplayName: "Claude-3", Provider: "anthropic", ModelID: "claude-3", EloChess: 1200, EloPoker: 1200, CreatedAt: now, UpdatedAt: now},
	}
	for _, p := range fixtures {
		if err := repo.UpsertParticipant(ctx, p); err != nil {
			t.Fatalf("UpsertParticipant(%s): %v", p.ID, err)
		}
	}
}

func drainEvent(t *testing.T, mgr *Manager) TurnEvent {
	t.Helper()
	select {
	case ev := <-mgr.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no turn event emitted")
		return TurnEvent{}
	}
}

func uciMove(mv string) json.RawMessage { return json.RawMessage(`"` + mv + `"`) }

func TestCreateSession_PersistsAndEmits(t *testing.T) {
	mgr, _ := newTestManager(t, agent.FirstLegal{})
	ctx := context.Background()

	sess, err := mgr.CreateSession(ctx, domain.GameChess, []string{"alice", "gpt-4"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.Status != domain.StatusInProgress {
		t.Fatalf("status = %s", sess.Status)
	}
	if sess.Roster[0].RatingBefore != 1400 || sess.Roster[1].RatingBefore != 1600 {
		t.Fatalf("roster ratings = %d/%d", sess.Roster[0].RatingBefore, sess.Roster[1].RatingBefore)
	}

	loaded, err := mgr.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if loaded.ID != sess.ID || loaded.Turn != 0 || len(loaded.Moves) != 0 {
		t.Fatalf("stored session diverges: turn=%d moves=%d", loaded.Turn, len(loaded.Moves))
	}

	ev := drainEvent(t, mgr)
	if ev.SessionID != sess.ID || ev.Seat != 0 {
		t.Fatalf("event = %+v", ev)
	}
}

func TestCreateSession_UnknownParticipant(t *testing.T) {
	mgr, _ := newTestManager(t, agent.FirstLegal{})
	_, err := mgr.CreateSession(context.Background(), domain.GameChess, []string{"alice", "nobody"})
	if !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("err = %v, want ErrParticipantNotFound", err)
	}
}

func TestSubmitMove_HumanThenAgentTurn(t *testing.T) {
	script := &agent.Scripted{Moves: []json.RawMessage{uciMove("e7e5")}}
	mgr, _ := newTestManager(t, script)
	ctx := context.Background()

	sess, err := mgr.CreateSession(ctx, domain.GameChess, []string{"alice", "gpt-4"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	drainEvent(t, mgr) // opening event for seat 0

	result, err := mgr.SubmitMove(ctx, sess.ID, 0, uciMove("e2e4"), 120*time.Millisecond)
	if err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	if result.Record.Seq != 1 || result.Completed {
		t.Fatalf("result = %+v", result)
	}

	ev := drainEvent(t, mgr)
	if ev.Seat != 1 {
		t.Fatalf("event seat = %d, want agent seat", ev.Seat)
	}
	if err := mgr.RunAgentTurn(ctx, ev); err != nil {
		t.Fatalf("RunAgentTurn: %v", err)
	}

	loaded, err := mgr.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(loaded.Moves) != 2 || loaded.Turn != 0 {
		t.Fatalf("after agent turn: moves=%d turn=%d", len(loaded.Moves), loaded.Turn)
	}
	if loaded.Moves[1].ParticipantID != "gpt-4" {
		t.Fatalf("agent move attributed to %s", loaded.Moves[1].ParticipantID)
	}
}

func TestRunAgentTurn_SkipsHumanAndStaleEvents(t *testing.T) {
	script := &agent.Scripted{Moves: []json.RawMessage{uciMove("e7e5")}}
	mgr, _ := newTestManager(t, script)
	ctx := context.Background()

	sess, err := mgr.CreateSession(ctx, domain.GameChess, []string{"alice", "gpt-4"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// seat 0 is human: nothing happens
	if err := mgr.RunAgentTurn(ctx, TurnEvent{SessionID: sess.ID, GameType: domain.GameChess, Seat: 0}); err != nil {
		t.Fatalf("human seat: %v", err)
	}
	// seat 1 is an agent but it is not its turn: stale event, nothing happens
	if err := mgr.RunAgentTurn(ctx, TurnEvent{SessionID: sess.ID, GameType: domain.GameChess, Seat: 1}); err != nil {
		t.Fatalf("stale seat: %v", err)
	}

	loaded, _ := mgr.GetSession(ctx, sess.ID)
	if len(loaded.Moves) != 0 {
		t.Fatalf("skipped events still produced moves")
	}
}

func TestRunAgentTurn_ProviderFailureLeavesTurnOpen(t *testing.T) {
	script := &agent.Scripted{} // empty script: every call fails
	mgr, _ := newTestManager(t, script)
	ctx := context.Background()

	sess, err := mgr.CreateSession(ctx, domain.GameChess, []string{"gpt-4", "alice"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	drainEvent(t, mgr)

	err = mgr.RunAgentTurn(ctx, TurnEvent{SessionID: sess.ID, GameType: domain.GameChess, Seat: 0})
	if !errors.Is(err, agent.ErrProvider) {
		t.Fatalf("err = %v, want ErrProvider", err)
	}

	loaded, _ := mgr.GetSession(ctx, sess.ID)
	if loaded.Status != domain.StatusInProgress || loaded.Turn != 0 || len(loaded.Moves) != 0 {
		t.Fatalf("provider failure mutated session: status=%s turn=%d moves=%d",
			loaded.Status, loaded.Turn, len(loaded.Moves))
	}
}

func TestSubmitMove_CompletionArchivesAndUpdatesRatings(t *testing.T) {
	mgr, repo := newTestManager(t, agent.FirstLegal{})
	ctx := context.Background()

	sess, err := mgr.CreateSession(ctx, domain.GameChess, []string{"alice", "gpt-4"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	moves := []string{"e2e4", "e7e5", "d1h5", "b8c6", "f1c4", "g8f6", "h5f7"}
	var last *session.MoveResult
	for i, mv := range moves {
		last, err = mgr.SubmitMove(ctx, sess.ID, i%2, uciMove(mv), 0)
		if err != nil {
			t.Fatalf("move %s: %v", mv, err)
		}
	}
	if !last.Completed || last.WinnerSeat != 0 {
		t.Fatalf("completed=%v winner=%d", last.Completed, last.WinnerSeat)
	}

	archived := repo.ArchivedSession(sess.ID)
	if archived == nil {
		t.Fatal("terminal session not archived")
	}
	if archived.Status != domain.StatusCompleted || archived.WinnerID != "alice" {
		t.Fatalf("archived status=%s winner=%s", archived.Status, archived.WinnerID)
	}

	alice, _ := repo.GetParticipant(ctx, "alice")
	gpt, _ := repo.GetParticipant(ctx, "gpt-4")
	if alice.EloChess != 1424 || gpt.EloChess != 1576 {
		t.Fatalf("ratings = %d/%d, want 1424/1576", alice.EloChess, gpt.EloChess)
	}
	if alice.EloPoker != 1200 || gpt.EloPoker != 1200 {
		t.Fatalf("poker ratings changed by a chess session")
	}

	// re-archiving is a no-op: ratings stay settled
	loaded, err := mgr.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	mgr.archive(ctx, loaded, last.RatingUpdates)
	alice, _ = repo.GetParticipant(ctx, "alice")
	if alice.EloChess != 1424 {
		t.Fatalf("duplicate archive reapplied ratings: %d", alice.EloChess)
	}
}

func TestAbort_ArchivesWithoutRatings(t *testing.T) {
	mgr, repo := newTestManager(t, agent.FirstLegal{})
	ctx := context.Background()

	sess, err := mgr.CreateSession(ctx, domain.GameChess, []string{"alice", "gpt-4"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := mgr.SubmitMove(ctx, sess.ID, 0, uciMove("d2d4"), 0); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}

	aborted, err := mgr.Abort(ctx, sess.ID, "operator request")
	if err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if aborted.Status != domain.StatusAborted || aborted.AbortReason != "operator request" {
		t.Fatalf("aborted = %s/%q", aborted.Status, aborted.AbortReason)
	}

	archived := repo.ArchivedSession(sess.ID)
	if archived == nil || archived.Status != domain.StatusAborted {
		t.Fatal("aborted session not archived")
	}
	alice, _ := repo.GetParticipant(ctx, "alice")
	if alice.EloChess != 1400 {
		t.Fatalf("abort changed rating to %d", alice.EloChess)
	}

	if _, err := mgr.SubmitMove(ctx, sess.ID, 1, uciMove("d7d5"), 0); !errors.Is(err, session.ErrSessionTerminal) {
		t.Fatalf("post-abort move: %v, want ErrSessionTerminal", err)
	}
}

func TestStore_SaveCASRejectsStaleWrites(t *testing.T) {
	mgr, _ := newTestManager(t, agent.FirstLegal{})
	ctx := context.Background()

	sess, err := mgr.CreateSession(ctx, domain.GameChess, []string{"alice", "gpt-4"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// two racers load the same snapshot; the first commit wins
	racerA, _ := mgr.GetSession(ctx, sess.ID)
	racerB, _ := mgr.GetSession(ctx, sess.ID)
	expect := len(racerA.Moves)

	if _, err := mgr.SubmitMove(ctx, sess.ID, 0, uciMove("e2e4"), 0); err != nil {
		t.Fatalf("winning commit: %v", err)
	}
	if err := mgr.store.SaveCAS(ctx, racerB, expect); !errors.Is(err, ErrStaleSession) {
		t.Fatalf("stale commit: %v, want ErrStaleSession", err)
	}
}

func TestPokerSession_EndToEnd(t *testing.T) {
	mgr, repo := newTestManager(t, agent.FirstLegal{})
	ctx := context.Background()

	sess, err := mgr.CreateSession(ctx, domain.GamePoker, []string{"alice", "gpt-4", "claude-3"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	fold := json.RawMessage(`{"action":"fold"}`)
	loaded, _ := mgr.GetSession(ctx, sess.ID)
	if _, err := mgr.SubmitMove(ctx, sess.ID, loaded.Turn, fold, 0); err != nil {
		t.Fatalf("first fold: %v", err)
	}
	loaded, _ = mgr.GetSession(ctx, sess.ID)
	result, err := mgr.SubmitMove(ctx, sess.ID, loaded.Turn, fold, 0)
	if err != nil {
		t.Fatalf("second fold: %v", err)
	}
	if !result.Completed || result.WinnerSeat != 0 {
		t.Fatalf("completed=%v winner=%d", result.Completed, result.WinnerSeat)
	}

	archived := repo.ArchivedSession(sess.ID)
	if archived == nil || archived.WinnerID != "alice" {
		t.Fatalf("archive missing or wrong winner: %+v", archived)
	}
	alice, _ := repo.GetParticipant(ctx, "alice")
	if alice.EloPoker <= 1200 {
		t.Fatalf("poker winner rating = %d, want increase", alice.EloPoker)
	}
	if alice.EloChess != 1400 {
		t.Fatalf("poker session touched chess rating")
	}
}
