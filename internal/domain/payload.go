package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// PayloadKind различает известные формы данных, пришедших по сокету.
type PayloadKind int

const (
	PayloadAbsent PayloadKind = iota // поле отсутствует или равно null
	PayloadObject
	PayloadString
	PayloadNumber
	PayloadBool
	PayloadOpaque // массивы и прочие значения без известной структуры
)

// Payload представляет размеченное объединение поверх произвольного JSON-значения.
// Доступ к полям идёт через типизированные методы, которые возвращают
// отсутствующее значение вместо ошибки.
type Payload struct {
	kind PayloadKind
	obj  map[string]any
	str  string // строка или текстовое представление числа
	b    bool
	raw  any
}

// ErrTrailingData возвращается, если после JSON-значения в кадре есть ещё данные.
var ErrTrailingData = errors.New("trailing data after JSON value")

// ParsePayload разбирает текстовый кадр как JSON.
func ParsePayload(data []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Payload{}, fmt.Errorf("decode frame: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Payload{}, ErrTrailingData
	}
	return NewPayload(v), nil
}

// NewPayload оборачивает уже декодированное значение.
func NewPayload(v any) Payload {
	switch val := v.(type) {
	case nil:
		return Payload{}
	case Payload:
		return val
	case map[string]any:
		return Payload{kind: PayloadObject, obj: val, raw: val}
	case string:
		return Payload{kind: PayloadString, str: val, raw: val}
	case json.Number:
		return Payload{kind: PayloadNumber, str: val.String(), raw: val}
	case float64:
		return Payload{kind: PayloadNumber, str: strconv.FormatFloat(val, 'f', -1, 64), raw: val}
	case int:
		return Payload{kind: PayloadNumber, str: strconv.Itoa(val), raw: val}
	case int64:
		return Payload{kind: PayloadNumber, str: strconv.FormatInt(val, 10), raw: val}
	case bool:
		return Payload{kind: PayloadBool, b: val, raw: val}
	default:
		return Payload{kind: PayloadOpaque, raw: val}
	}
}

func (p Payload) Kind() PayloadKind { return p.kind }

// Present сообщает, что значение есть и оно не null.
func (p Payload) Present() bool { return p.kind != PayloadAbsent }

func (p Payload) IsObject() bool { return p.kind == PayloadObject }

// Field возвращает поле объекта; для не-объектов значение отсутствует.
func (p Payload) Field(name string) Payload {
	if p.kind != PayloadObject {
		return Payload{}
	}
	return NewPayload(p.obj[name])
}

// AsString возвращает значение, только если это строка (в том числе пустая).
func (p Payload) AsString() (string, bool) {
	if p.kind != PayloadString {
		return "", false
	}
	return p.str, true
}

// Text возвращает текст «истинного» скалярного значения: непустой строки,
// ненулевого числа или true. Остальное считается отсутствующим.
func (p Payload) Text() (string, bool) {
	switch p.kind {
	case PayloadString:
		return p.str, p.str != ""
	case PayloadNumber:
		if p.isZero() {
			return "", false
		}
		return p.number(), true
	case PayloadBool:
		if !p.b {
			return "", false
		}
		return "true", true
	default:
		return "", false
	}
}

// Render выводит любое присутствующее значение как текст.
func (p Payload) Render() string {
	switch p.kind {
	case PayloadAbsent:
		return ""
	case PayloadString:
		return p.str
	case PayloadNumber:
		return p.number()
	case PayloadBool:
		return strconv.FormatBool(p.b)
	default:
		out, err := json.Marshal(p.raw)
		if err != nil {
			return fmt.Sprint(p.raw)
		}
		return string(out)
	}
}

func (p Payload) isZero() bool {
	f, err := strconv.ParseFloat(p.str, 64)
	return err == nil && f == 0
}

// number приводит числа к короткой записи: 100.50 выводится как 100.5.
func (p Payload) number() string {
	if strings.ContainsAny(p.str, ".eE") {
		if f, err := strconv.ParseFloat(p.str, 64); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return p.str
}
