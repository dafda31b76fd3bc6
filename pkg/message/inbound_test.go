package message

import (
	"encoding/hex"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *Inbound
	}{
		{
			name: "initial publish",
			body: "080e54a49c25",
			want: &Inbound{Op: OpPublish, Item: ItemInitial, Payload: []byte{0x54, 0xa4, 0x9c, 0x25}},
		},
		{
			name: "login response",
			body: "070200e4505d68",
			want: &Inbound{Op: OpResponse, Item: ItemLogin, Result: ResultSuccess, Payload: []byte{0xe4, 0x50, 0x5d, 0x68}},
		},
		{
			name: "lock response busy",
			body: "075207",
			want: &Inbound{Op: OpResponse, Item: ItemLock, Result: ResultBusy, Payload: []byte{}},
		},
		{
			name: "mech status publish",
			body: "08511c0c00019cff02",
			want: &Inbound{Op: OpPublish, Item: ItemMechStatus, Payload: []byte{0x1c, 0x0c, 0x00, 0x01, 0x9c, 0xff, 0x02}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := hex.DecodeString(tt.body)
			got, err := ParseInbound(body)
			if err != nil {
				t.Fatalf("ParseInbound failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("ParseInbound mismatch (-want +got):\n%s", diff)
			}

			if diff := cmp.Diff(body, got.Encode()); diff != "" {
				t.Errorf("Encode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseInboundErrors(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want error
	}{
		{"empty", nil, ErrShortPacket},
		{"op only", []byte{0x08}, ErrShortPacket},
		{"response without result", []byte{0x07, 0x02}, ErrShortPacket},
		{"unknown op", []byte{0x09, 0x02, 0x00}, ErrUnknownOpCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseInbound(tt.body); err != tt.want {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestInboundHelpers(t *testing.T) {
	challenge := [ChallengeSize]byte{0x54, 0xa4, 0x9c, 0x25}
	m := NewInitialPublish(challenge)
	if !m.IsPublish() || m.IsResponse() || !m.Success() {
		t.Errorf("initial publish flags wrong: %+v", m)
	}
	got, err := m.Challenge()
	if err != nil {
		t.Fatalf("Challenge failed: %v", err)
	}
	if got != challenge {
		t.Errorf("Challenge = %x, want %x", got, challenge)
	}

	r := NewResponse(ItemUnlock, ResultInvalidSig, nil)
	if !r.IsResponse() || r.Success() {
		t.Errorf("failed response flags wrong: %+v", r)
	}
	if _, err := r.Challenge(); err != ErrShortPacket {
		t.Errorf("Challenge on response: got %v, want ErrShortPacket", err)
	}
}
