package common

import "testing"

func TestPropertiesGetString(t *testing.T) {
	props := Properties{
		"strategy": "hybrid",
		"count":    3,
	}

	if got := props.GetString("strategy"); got != "hybrid" {
		t.Errorf("GetString(strategy) = %q, want %q", got, "hybrid")
	}
	if got := props.GetString("count"); got != "" {
		t.Errorf("GetString on non-string value = %q, want empty", got)
	}
	if got := props.GetString("missing"); got != "" {
		t.Errorf("GetString on missing key = %q, want empty", got)
	}

	var nilProps Properties
	if got := nilProps.GetString("strategy"); got != "" {
		t.Errorf("GetString on nil map = %q, want empty", got)
	}
}

func TestPropertiesMarshalJSONB_NilIsEmptyObject(t *testing.T) {
	var props Properties
	b, err := props.MarshalJSONB()
	if err != nil {
		t.Fatalf("MarshalJSONB failed: %v", err)
	}
	if string(b) != "{}" {
		t.Errorf("nil map serialized as %q, want {}", b)
	}
}
