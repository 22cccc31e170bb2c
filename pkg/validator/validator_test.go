package validator

import "testing"

type checkoutPayload struct {
	PlanCode       string `binding:"required,plan_code"`
	PaymentService string `binding:"omitempty,payment_service"`
}

func TestValidateHonorsBindingTags(t *testing.T) {
	Init()

	if err := Validate(&checkoutPayload{PlanCode: "premium-4k"}); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
	if err := Validate(&checkoutPayload{}); err == nil {
		t.Fatal("missing plan code must fail validation")
	}
	if err := Validate(&checkoutPayload{PlanCode: "Premium!"}); err == nil {
		t.Fatal("malformed plan code must fail validation")
	}
	if err := Validate(&checkoutPayload{PlanCode: "basic", PaymentService: "Kakao Pay"}); err == nil {
		t.Fatal("malformed payment service hint must fail validation")
	}
}

func TestValidateEmail(t *testing.T) {
	if !ValidateEmail("user@example.com") {
		t.Fatal("expected valid email to pass")
	}
	if ValidateEmail("not-an-email") {
		t.Fatal("expected invalid email to fail")
	}
}

func TestValidateURL(t *testing.T) {
	if !ValidateURL("https://ott.example.com") {
		t.Fatal("expected https url to pass")
	}
	if ValidateURL("not a url") {
		t.Fatal("expected malformed url to fail")
	}
}
