package utils

import "testing"

func TestSafeJSONParse(t *testing.T) {
	var v struct {
		A string `json:"a"`
	}
	if err := SafeJSONParse(nil, &v); err == nil {
		t.Error("expected error for empty frame")
	}
	if err := SafeJSONParse([]byte(`{"a":`), &v); err == nil {
		t.Error("expected error for truncated frame")
	}
	if err := SafeJSONParse([]byte(`{"a":"b"}`), &v); err != nil || v.A != "b" {
		t.Errorf("SafeJSONParse = %v, %+v", err, v)
	}
}
