package agent

import (
	"errors"
	"testing"

	"github.com/park285/game-arena/internal/domain"
)

func TestParseMove_Envelopes(t *testing.T) {
	cases := []struct {
		name string
		body string
		gt   domain.GameType
		want string
	}{
		{"move envelope", `{"move":"e2e4"}`, domain.GameChess, `"e2e4"`},
		{"move object", `{"move":{"uci":"g1f3"}}`, domain.GameChess, `{"uci":"g1f3"}`},
		{"action envelope", `{"action":{"action":"raise","amount":40}}`, domain.GamePoker, `{"action":"raise","amount":40}`},
		{"bare object", `{"action":"call"}`, domain.GamePoker, `{"action":"call"}`},
		{"bare chess string", `"d2d4"`, domain.GameChess, `"d2d4"`},
		{"bare poker string wrapped", `{"action":"fold"}`, domain.GamePoker, `{"action":"fold"}`},
		{"poker string normalized", `"fold"`, domain.GamePoker, `{"action":"fold"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseMove([]byte(tc.body), tc.gt)
			if err != nil {
				t.Fatalf("parseMove: %v", err)
			}
			if string(got) != tc.want {
				t.Fatalf("payload = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestParseMove_PlaintextScavenging(t *testing.T) {
	got, err := parseMove([]byte("I will play e2e4 here."), domain.GameChess)
	if err != nil {
		t.Fatalf("parseMove: %v", err)
	}
	if string(got) != `"e2e4"` {
		t.Fatalf("payload = %s", got)
	}

	got, err = parseMove([]byte("The best line is to fold now"), domain.GamePoker)
	if err != nil {
		t.Fatalf("parseMove: %v", err)
	}
	if string(got) != `{"action":"fold"}` {
		t.Fatalf("payload = %s", got)
	}
}

func TestParseMove_Unusable(t *testing.T) {
	if _, err := parseMove([]byte(""), domain.GameChess); !errors.Is(err, ErrProvider) {
		t.Fatalf("empty body: %v", err)
	}
	if _, err := parseMove([]byte("no move in this prose"), domain.GameChess); !errors.Is(err, ErrProvider) {
		t.Fatalf("unusable prose: %v", err)
	}
}
