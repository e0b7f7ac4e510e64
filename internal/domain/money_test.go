package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseMoney(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in      string
		want    Money
		wantErr bool
	}{
		{in: "250", want: 25000},
		{in: "250.5", want: 25050},
		{in: "250.50", want: 25050},
		{in: "0.10", want: 10},
		{in: " 12.34 ", want: 1234},
		{in: "-3.07", want: -307},
		{in: "+1", want: 100},
		{in: "", wantErr: true},
		{in: "1.234", wantErr: true},
		{in: "1.", wantErr: true},
		{in: ".5", wantErr: true},
		{in: "1e3", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "99999999999999999999", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseMoney(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidMoney) {
					t.Errorf("expected ErrInvalidMoney, got %v (%d)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestMoney_String(t *testing.T) {
	t.Parallel()

	testCases := map[Money]string{
		0:       "0.00",
		5:       "0.05",
		2500000: "25000.00",
		-307:    "-3.07",
	}
	for m, want := range testCases {
		if got := m.String(); got != want {
			t.Errorf("Money(%d).String() = %q, want %q", int64(m), got, want)
		}
	}
}

func TestMoney_ArithmeticIsExact(t *testing.T) {
	t.Parallel()

	dime := MustParseMoney("0.10")
	var total Money
	for i := 0; i < 10; i++ {
		total += dime
	}
	if total != MustParseMoney("1.00") {
		t.Errorf("ten dimes should be exactly 1.00, got %s", total)
	}

	got, err := MustParseMoney("25000").Mul(3)
	if err != nil || got.String() != "75000.00" {
		t.Errorf("expected 75000.00, got %s (%v)", got, err)
	}
	if got := Sum(10, 20, -5); got != 25 {
		t.Errorf("expected 25, got %d", got)
	}
}

func TestMoney_MulOverflow(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		m       Money
		qty     int
		wantErr bool
	}{
		{name: "max times one", m: MaxMoney, qty: 1},
		{name: "max times two", m: MaxMoney, qty: 2, wantErr: true},
		{name: "tenth of max times ten", m: MaxMoney / 10, qty: 10},
		{name: "near int64 limit", m: MustParseMoney("92233720368547757"), qty: 2, wantErr: true},
		{name: "zero quantity", m: MaxMoney, qty: 0},
		{name: "negative in range", m: -100, qty: 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.m.Mul(tc.qty)
			if tc.wantErr {
				if !errors.Is(err, ErrMoneyOverflow) {
					t.Errorf("expected ErrMoneyOverflow, got %s, %v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.m*Money(tc.qty) {
				t.Errorf("expected %s, got %s", tc.m*Money(tc.qty), got)
			}
			if !got.InRange() {
				t.Errorf("%s is out of range", got)
			}
		})
	}
}

func TestMoney_Add(t *testing.T) {
	t.Parallel()

	if got, err := Money(150).Add(250); err != nil || got != 400 {
		t.Errorf("expected 400, got %d, %v", got, err)
	}
	if _, err := MaxMoney.Add(1); !errors.Is(err, ErrMoneyOverflow) {
		t.Errorf("expected ErrMoneyOverflow, got %v", err)
	}
	if _, err := Money(1).Add(MaxMoney + 1); !errors.Is(err, ErrMoneyOverflow) {
		t.Errorf("expected out-of-range operand to fail, got %v", err)
	}
}

func TestMoney_JSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Amount: 1234})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"amount":"12.34"}` {
		t.Errorf("unexpected encoding %s", data)
	}

	for _, in := range []string{`"12.34"`, `12.34`} {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if m != 1234 {
			t.Errorf("unmarshal %s: expected 1234, got %d", in, m)
		}
	}

	var m Money
	if err := json.Unmarshal([]byte(`"1.005"`), &m); err == nil {
		t.Error("expected three fraction digits to be rejected")
	}
}

func TestMoney_Scan(t *testing.T) {
	t.Parallel()

	var m Money
	if err := m.Scan([]byte("150.25")); err != nil || m != 15025 {
		t.Errorf("scan bytes: got %d, %v", m, err)
	}
	if err := m.Scan(int64(7)); err != nil || m != 700 {
		t.Errorf("scan int64: got %d, %v", m, err)
	}
	if err := m.Scan(nil); err != nil || m != 0 {
		t.Errorf("scan nil: got %d, %v", m, err)
	}
	if err := m.Scan(1.5); err == nil {
		t.Error("expected float64 to be rejected")
	}

	v, err := Money(15025).Value()
	if err != nil || v != "150.25" {
		t.Errorf("value: got %v, %v", v, err)
	}
}
