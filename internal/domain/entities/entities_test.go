package entities

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_NumericRoundTrip(t *testing.T) {
	var p Product
	require.NoError(t, json.Unmarshal([]byte(`{"id":42,"name":"Mouse","price":25}`), &p))
	assert.Equal(t, ID("42"), p.ID)

	out, err := json.Marshal(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "42", string(out))
}

func TestID_StringKeepsQuotes(t *testing.T) {
	var id ID
	require.NoError(t, json.Unmarshal([]byte(`"sku-7"`), &id))
	assert.Equal(t, ID("sku-7"), id)

	out, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"sku-7"`, string(out))
}

func TestID_PaddedIDsStayStrings(t *testing.T) {
	for _, id := range []ID{"7 ", " 7", "7\n", "\t-3.5"} {
		data, err := json.Marshal(CartItem{ID: id, Price: 1, Quantity: 1})
		require.NoError(t, err)

		var back CartItem
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, id, back.ID, "round trip of %q via %s", id, data)
	}
}

func TestID_QuotedNumberComparesEqual(t *testing.T) {
	var a, b ID
	require.NoError(t, json.Unmarshal([]byte(`"1"`), &a))
	require.NoError(t, json.Unmarshal([]byte(`1`), &b))
	assert.Equal(t, a, b)
}

func TestID_RejectsObjects(t *testing.T) {
	var id ID
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &id))
}

func TestChatMessage_Validate(t *testing.T) {
	two := 2
	one := 1
	products := []Product{{ID: "1"}, {ID: "2"}}

	cases := []struct {
		name string
		msg  ChatMessage
		ok   bool
	}{
		{"plain text", ChatMessage{Sender: SenderUser, Kind: KindText, Text: "hi"}, true},
		{"legacy greeting without type", ChatMessage{Sender: SenderBot, Text: "Hello"}, true},
		{"products link", ChatMessage{Sender: SenderBot, Kind: KindProductsLink, ProductsCount: &two, Products: products}, true},
		{"link without payload", ChatMessage{Sender: SenderBot, Kind: KindProductsLink}, false},
		{"count mismatch", ChatMessage{Sender: SenderBot, Kind: KindProductsLink, ProductsCount: &one, Products: products}, false},
		{"text with payload", ChatMessage{Sender: SenderBot, Kind: KindText, Products: products}, false},
		{"unknown sender", ChatMessage{Sender: "system", Kind: KindText}, false},
		{"unknown kind", ChatMessage{Sender: SenderBot, Kind: "image"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestFilterCriteria_Validate(t *testing.T) {
	assert.NoError(t, DefaultFilterCriteria().Validate())

	inverted := DefaultFilterCriteria()
	inverted.MinPrice, inverted.MaxPrice = 50, 10
	assert.ErrorIs(t, inverted.Validate(), ErrInvalidCriteria)
	assert.ErrorIs(t, inverted.Validate(), ErrValidation)

	badKey := DefaultFilterCriteria()
	badKey.SortKey = "rating"
	assert.ErrorIs(t, badKey.Validate(), ErrInvalidCriteria)
}

func TestRemoteError_Messages(t *testing.T) {
	withMessage := &RemoteError{Status: http.StatusBadRequest, Message: "Cart is empty."}
	assert.Equal(t, "Cart is empty.", withMessage.Error())

	statusOnly := &RemoteError{Status: http.StatusNotFound}
	assert.Equal(t, "Not Found", statusOnly.Error())

	transport := &RemoteError{Err: errors.New("connection refused")}
	assert.Equal(t, "connection refused", transport.Error())

	assert.True(t, (&RemoteError{Status: http.StatusForbidden}).Unauthorized())
	assert.False(t, withMessage.Unauthorized())
}

func TestDisplayMessage(t *testing.T) {
	wrapped := fmt.Errorf("checkout: %w", &RemoteError{Status: 500, Message: "Database error during checkout."})
	assert.Equal(t, "Database error during checkout.", DisplayMessage(wrapped))
	assert.Equal(t, "Your cart is empty!", DisplayMessage(ErrEmptyCart))
	assert.Equal(t, "Please log in to continue.", DisplayMessage(fmt.Errorf("send: %w", ErrUnauthenticated)))
	assert.Equal(t, "", DisplayMessage(nil))
}
