//go:build go1.18

package domain

import (
	"testing"
)

// FuzzParseAccountID checks that parsing never panics and that accepted ids
// round-trip unchanged.
func FuzzParseAccountID(f *testing.F) {
	f.Add("")
	f.Add("factory.testnet")
	f.Add("a.b.c.d")
	f.Add("'; DROP TABLE municipalities;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("bond-\x00.testnet")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseAccountID(input)
		if err != nil {
			return
		}
		if string(id) != input {
			t.Errorf("accepted id changed: %q -> %q", input, id)
		}
		if len(id) < minAccountIDLen || len(id) > maxAccountIDLen {
			t.Errorf("accepted id with length %d", len(id))
		}
	})
}

func FuzzParseAmount(f *testing.F) {
	f.Add("0")
	f.Add("5550000000000000000000")
	f.Add("-1")
	f.Add("1e10")

	f.Fuzz(func(t *testing.T, input string) {
		a, err := ParseAmount(input)
		if err != nil {
			return
		}
		again, err := ParseAmount(a.String())
		if err != nil || again.Cmp(a) != 0 {
			t.Errorf("amount %q failed round-trip", input)
		}
	})
}
