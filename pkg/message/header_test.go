package message

import (
	"bytes"
	"testing"
)

func TestSegmentHeaderEncode(t *testing.T) {
	tests := []struct {
		name    string
		first   bool
		parsing ParsingType
		want    byte
	}{
		{"plaintext single", true, ParsingPlaintext, 0x03},
		{"ciphertext single", true, ParsingCiphertext, 0x05},
		{"first of many", true, ParsingNone, 0x01},
		{"middle", false, ParsingNone, 0x00},
		{"ciphertext last", false, ParsingCiphertext, 0x04},
		{"plaintext last", false, ParsingPlaintext, 0x02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeSegmentHeader(tt.first, tt.parsing)
			if got != tt.want {
				t.Errorf("EncodeSegmentHeader(%v, %v) = %#02x, want %#02x", tt.first, tt.parsing, got, tt.want)
			}

			h, err := DecodeSegmentHeader(got)
			if err != nil {
				t.Fatalf("DecodeSegmentHeader failed: %v", err)
			}
			if h.First != tt.first || h.Parsing != tt.parsing {
				t.Errorf("decoded %+v, want first=%v parsing=%v", h, tt.first, tt.parsing)
			}
		})
	}
}

func TestDecodeSegmentHeaderReserved(t *testing.T) {
	for _, b := range []byte{0x06, 0x07} {
		if _, err := DecodeSegmentHeader(b); err != ErrInvalidParsingType {
			t.Errorf("DecodeSegmentHeader(%#02x): got %v, want ErrInvalidParsingType", b, err)
		}
	}
}

func TestSplitPacket(t *testing.T) {
	packet := []byte("\x03\x08\x0e\x54\xa4\x9c\x25")

	h, body, err := SplitPacket(packet)
	if err != nil {
		t.Fatalf("SplitPacket failed: %v", err)
	}
	if !h.First || h.Parsing != ParsingPlaintext || !h.Last() {
		t.Errorf("header = %+v", h)
	}
	if want := packet[1:]; !bytes.Equal(body, want) {
		t.Errorf("body = %x, want %x", body, want)
	}

	if _, _, err := SplitPacket(nil); err != ErrEmptyPacket {
		t.Errorf("SplitPacket(nil): got %v, want ErrEmptyPacket", err)
	}
}

func TestFrame(t *testing.T) {
	got := Frame(ParsingCiphertext, []byte{0xaa, 0xbb})
	if want := []byte{0x05, 0xaa, 0xbb}; !bytes.Equal(got, want) {
		t.Errorf("Frame = %x, want %x", got, want)
	}
}

func TestEnumStrings(t *testing.T) {
	if got := ItemLock.String(); got != "Lock" {
		t.Errorf("ItemLock.String() = %q", got)
	}
	if got := ItemCode(200).String(); got != "Unknown" {
		t.Errorf("ItemCode(200).String() = %q", got)
	}
	if ItemCode(200).IsValid() || !ItemOpsTimerSetting.IsValid() {
		t.Error("ItemCode.IsValid mismatch")
	}
	if got := OpPublish.String(); got != "Publish" {
		t.Errorf("OpPublish.String() = %q", got)
	}
	if got := ResultBusy.String(); got != "Busy" {
		t.Errorf("ResultBusy.String() = %q", got)
	}
	if ParsingType(3).IsValid() {
		t.Error("ParsingType(3) reported valid")
	}
}
