package http

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestMoneyValidation(t *testing.T) {
	type P struct {
		Amount json.Number `validate:"required,money"`
	}
	cv := NewValidator()

	for _, v := range []string{"1", "5000", "0.01", "31500.50"} {
		if err := cv.Validate(P{Amount: json.Number(v)}); err != nil {
			t.Fatalf("expected money OK for %s, got %v", v, err)
		}
	}
	for _, v := range []string{"0", "-5", "1.005", "abc"} {
		err := cv.Validate(P{Amount: json.Number(v)})
		if err == nil {
			t.Fatalf("expected error for %q", v)
		}
		if !containsFieldMsg(ToFieldErrors(err), "Amount", "at most 2 decimal places") {
			t.Fatalf("expected money message for %q, got %+v", v, ToFieldErrors(err))
		}
	}
}

func TestIdentValidation(t *testing.T) {
	type P struct {
		ID string `validate:"ident"`
	}
	cv := NewValidator()
	if err := cv.Validate(P{ID: "group_01-A"}); err != nil {
		t.Fatalf("expected valid ident, got %v", err)
	}
	for _, s := range []string{"", "has space", strings.Repeat("a", 65), "semi;colon"} {
		err := cv.Validate(P{ID: s})
		if err == nil {
			t.Fatalf("expected error for %q", s)
		}
		if !containsFieldMsg(ToFieldErrors(err), "ID", "letters, digits") {
			t.Fatalf("expected ident message for %q, got %+v", s, ToFieldErrors(err))
		}
	}
}

func TestToFieldErrors_Messages(t *testing.T) {
	type P struct {
		Month  int    `validate:"required,gte=1,lte=12"`
		Method string `validate:"required,oneof=CARD CASH"`
	}
	cv := NewValidator()
	fe := ToFieldErrors(cv.Validate(P{Month: 13, Method: "COINS"}))
	if !containsFieldMsg(fe, "Month", "less than or equal to 12") {
		t.Fatalf("missing lte message: %+v", fe)
	}
	if !containsFieldMsg(fe, "Method", "one of CARD CASH") {
		t.Fatalf("missing oneof message: %+v", fe)
	}
	fe = ToFieldErrors(cv.Validate(P{}))
	if !containsFieldMsg(fe, "Month", "is required") || !containsFieldMsg(fe, "Method", "is required") {
		t.Fatalf("missing required messages: %+v", fe)
	}
}

func TestToFieldErrors_NonValidatorError(t *testing.T) {
	fe := ToFieldErrors(errors.New("boom"))
	if len(fe) != 1 || fe[0].Field != "_" || fe[0].Message != "boom" {
		t.Fatalf("unexpected: %+v", fe)
	}
}

func containsFieldMsg(list []FieldError, field, substr string) bool {
	for _, e := range list {
		if e.Field == field && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
