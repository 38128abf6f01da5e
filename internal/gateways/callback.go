package gateway

import "encoding/json"

// CallbackEnvelope is the payload Daraja posts to the callback URL after the
// customer acts on (or ignores) the payment prompt.
type CallbackEnvelope struct {
	Body struct {
		STKCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem values are strings or numbers depending on the item name.
type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// Success reports whether the customer completed the payment.
func (c *STKCallback) Success() bool {
	return c.ResultCode == 0
}

// ReceiptNumber extracts the MpesaReceiptNumber metadata item. Present only
// on successful callbacks.
func (c *STKCallback) ReceiptNumber() (string, bool) {
	if c.CallbackMetadata == nil {
		return "", false
	}
	for _, item := range c.CallbackMetadata.Item {
		if item.Name != "MpesaReceiptNumber" {
			continue
		}
		var receipt string
		if err := json.Unmarshal(item.Value, &receipt); err != nil || receipt == "" {
			return "", false
		}
		return receipt, true
	}
	return "", false
}
