package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	dErrors "microbonds/pkg/domain-errors"
)

// Amount is a non-negative balance in the ledger's smallest unit (yocto).
// Values exceed 64 bits (one token is 10^24 yocto), so Amount wraps big.Int
// and is immutable: every operation returns a new value.
//
// JSON encoding is a decimal string, matching the ledger's U128 wire form.
type Amount struct {
	v *big.Int
}

func NewAmount(n uint64) Amount {
	return Amount{v: new(big.Int).SetUint64(n)}
}

func ZeroAmount() Amount { return Amount{} }

// ParseAmount parses a base-10 non-negative integer.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, dErrors.New(dErrors.CodeBadRequest, "amount is required")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, dErrors.New(dErrors.CodeBadRequest, "amount must be a base-10 integer")
	}
	if v.Sign() < 0 {
		return Amount{}, dErrors.New(dErrors.CodeBadRequest, "amount must not be negative")
	}
	return Amount{v: v}, nil
}

// MustParseAmount is for constants and tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

func (a Amount) Add(b Amount) Amount {
	return Amount{v: new(big.Int).Add(a.big(), b.big())}
}

// Sub returns a-b, or zero when b > a.
func (a Amount) Sub(b Amount) Amount {
	d := new(big.Int).Sub(a.big(), b.big())
	if d.Sign() < 0 {
		return Amount{}
	}
	return Amount{v: d}
}

func (a Amount) MulUint64(n uint64) Amount {
	return Amount{v: new(big.Int).Mul(a.big(), new(big.Int).SetUint64(n))}
}

func (a Amount) Cmp(b Amount) int { return a.big().Cmp(b.big()) }

func (a Amount) LessThan(b Amount) bool { return a.Cmp(b) < 0 }

func (a Amount) IsZero() bool { return a.big().Sign() == 0 }

func (a Amount) String() string { return a.big().String() }

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both "123" and 123.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value stores the amount in a NUMERIC column.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case []byte:
		return a.scanString(string(v))
	case string:
		return a.scanString(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("scan amount: negative value %d", v)
		}
		*a = NewAmount(uint64(v))
		return nil
	default:
		return fmt.Errorf("scan amount: unsupported type %T", src)
	}
}

func (a *Amount) scanString(s string) error {
	parsed, err := ParseAmount(s)
	if err != nil {
		return fmt.Errorf("scan amount: %w", err)
	}
	*a = parsed
	return nil
}
