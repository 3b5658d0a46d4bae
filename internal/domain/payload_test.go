package domain

import (
	"errors"
	"testing"
)

func TestParsePayloadShapes(t *testing.T) {
	cases := []struct {
		frame string
		kind  PayloadKind
	}{
		{`{"event":"USER_RECHARGE"}`, PayloadObject},
		{`"hello"`, PayloadString},
		{`42`, PayloadNumber},
		{`true`, PayloadBool},
		{`[1,2]`, PayloadOpaque},
		{`null`, PayloadAbsent},
	}
	for _, tc := range cases {
		p, err := ParsePayload([]byte(tc.frame))
		if err != nil {
			t.Fatalf("%s: неожиданная ошибка %v", tc.frame, err)
		}
		if p.Kind() != tc.kind {
			t.Errorf("%s: ожидался вид %d, получен %d", tc.frame, tc.kind, p.Kind())
		}
	}
}

func TestParsePayloadRejectsMalformed(t *testing.T) {
	if _, err := ParsePayload([]byte("not json")); err == nil {
		t.Fatal("ожидалась ошибка для не-JSON кадра")
	}
	if _, err := ParsePayload([]byte(`{"a":1} trailing`)); !errors.Is(err, ErrTrailingData) {
		t.Fatalf("ожидалась ErrTrailingData, получено %v", err)
	}
}

func TestPayloadAccessors(t *testing.T) {
	p, err := ParsePayload([]byte(`{"data":{"user":"Alice","amount":0,"price":100.50},"message":"","flag":false}`))
	if err != nil {
		t.Fatal(err)
	}
	data := p.Field("data")
	if !data.IsObject() {
		t.Fatal("data должно быть объектом")
	}
	if user, ok := data.Field("user").Text(); !ok || user != "Alice" {
		t.Errorf("user: получено %q, %v", user, ok)
	}
	amount := data.Field("amount")
	if !amount.Present() {
		t.Error("нулевая сумма должна считаться присутствующей")
	}
	if _, ok := amount.Text(); ok {
		t.Error("нулевая сумма не должна быть «истинной»")
	}
	if amount.Render() != "0" {
		t.Errorf("ожидалось 0, получено %q", amount.Render())
	}
	if got := data.Field("price").Render(); got != "100.5" {
		t.Errorf("ожидалось 100.5, получено %q", got)
	}
	if msg, ok := p.Field("message").AsString(); !ok || msg != "" {
		t.Errorf("message: получено %q, %v", msg, ok)
	}
	if _, ok := p.Field("flag").Text(); ok {
		t.Error("false не должно быть «истинным»")
	}
	if p.Field("missing").Present() {
		t.Error("отсутствующее поле не должно быть присутствующим")
	}
	if p.Field("message").Field("nested").Present() {
		t.Error("поле у строки должно отсутствовать")
	}
}

func TestNewPayloadFromGoValues(t *testing.T) {
	p := NewPayload(map[string]any{"amount": 12, "rate": 0.5})
	if got := p.Field("amount").Render(); got != "12" {
		t.Errorf("ожидалось 12, получено %q", got)
	}
	if got := p.Field("rate").Render(); got != "0.5" {
		t.Errorf("ожидалось 0.5, получено %q", got)
	}
}
