package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestParseEventType(t *testing.T) {
	cases := []struct {
		input string
		want  EventType
		ok    bool
	}{
		{"order_created", OrderCreated, true},
		{"order_paid", OrderPaid, true},
		{"product_purchased", ProductPurchased, true},
		{"  Order_Paid  ", OrderPaid, true},
		{"order_deleted", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		got, err := ParseEventType(tc.input)
		if tc.ok && err != nil {
			t.Errorf("ParseEventType(%q) error: %v", tc.input, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ParseEventType(%q) expected error", tc.input)
		}
		if got != tc.want {
			t.Errorf("ParseEventType(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestSubscriptionColumn(t *testing.T) {
	if col := OrderCreated.SubscriptionColumn(); col != "on_order_created" {
		t.Errorf("OrderCreated column = %q", col)
	}
	if col := OrderPaid.SubscriptionColumn(); col != "on_order_paid" {
		t.Errorf("OrderPaid column = %q", col)
	}
	if col := ProductPurchased.SubscriptionColumn(); col != "on_product_purchased" {
		t.Errorf("ProductPurchased column = %q", col)
	}
	if col := EventType("bogus").SubscriptionColumn(); col != "" {
		t.Errorf("unknown event column = %q, want empty", col)
	}
}

func TestWantsEvent(t *testing.T) {
	sub := WebhookSubscription{OnOrderPaid: true}
	if !sub.WantsEvent(OrderPaid) {
		t.Error("expected order_paid to match")
	}
	if sub.WantsEvent(OrderCreated) || sub.WantsEvent(ProductPurchased) {
		t.Error("unset flags must not match")
	}
}

func TestAppliesToProduct(t *testing.T) {
	productID := uuid.New()
	other := uuid.New()

	unscoped := WebhookSubscription{}
	if !unscoped.AppliesToProduct(&productID) || !unscoped.AppliesToProduct(nil) {
		t.Error("nil scope must apply to every product")
	}

	scoped := WebhookSubscription{ProductID: &productID}
	if !scoped.AppliesToProduct(&productID) {
		t.Error("matching scope must apply")
	}
	if scoped.AppliesToProduct(&other) {
		t.Error("mismatched scope must not apply")
	}
	if scoped.AppliesToProduct(nil) {
		t.Error("scoped subscription must not apply to an unscoped task")
	}
}
