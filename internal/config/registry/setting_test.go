package registry

import "testing"

func TestSetting_ValidateType(t *testing.T) {
	tests := []struct {
		name    string
		typ     SettingType
		value   any
		wantErr bool
	}{
		{"string ok", TypeString, "x", false},
		{"string wrong", TypeString, 3, true},
		{"int ok", TypeInt, 3, false},
		{"int from float", TypeInt, float64(3), false},
		{"int fractional", TypeInt, 3.5, true},
		{"int wrong", TypeInt, "3", true},
		{"bool ok", TypeBool, true, false},
		{"bool wrong", TypeBool, "true", true},
		{"list strings", TypeStringList, []string{"a"}, false},
		{"list any", TypeStringList, []any{"a", "b"}, false},
		{"list mixed", TypeStringList, []any{"a", 1}, true},
		{"list wrong", TypeStringList, "a", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Setting{Path: "test", Type: tt.typ}
			err := s.Validate(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%v) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestSetting_ValidateRange(t *testing.T) {
	s := &Setting{Path: "test", Type: TypeInt, Minimum: MinValue(1), Maximum: MaxValue(10)}

	tests := []struct {
		value   any
		wantErr bool
	}{
		{0, true},
		{1, false},
		{10, false},
		{11, true},
	}
	for _, tt := range tests {
		if err := s.Validate(tt.value); (err != nil) != tt.wantErr {
			t.Errorf("Validate(%v) error = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
	}
}

func TestSetting_ValidateEnum(t *testing.T) {
	s := &Setting{Path: "test", Type: TypeEnum, Enum: []string{"a", "b"}}
	if err := s.Validate("a"); err != nil {
		t.Errorf("Validate(a) error = %v", err)
	}
	if err := s.Validate("c"); err == nil {
		t.Error("expected error for value outside enum")
	}

	s.Optional = true
	if err := s.Validate(""); err != nil {
		t.Errorf("empty optional enum should validate, got %v", err)
	}
}

func TestSetting_ValidatePattern(t *testing.T) {
	s := &Setting{Path: "test", Type: TypeString, Pattern: `^https?://`}
	if err := s.Validate("https://example.com"); err != nil {
		t.Errorf("Validate error = %v", err)
	}
	if err := s.Validate("ftp://example.com"); err == nil {
		t.Error("expected pattern mismatch error")
	}

	bad := &Setting{Path: "test", Type: TypeString, Pattern: `(`}
	if err := bad.Validate("x"); err == nil {
		t.Error("expected error for invalid pattern")
	}
	if err := New().Register(*bad); err == nil {
		t.Error("expected Register to reject an invalid pattern")
	}

	r := New()
	r.MustRegister(Setting{Path: "alerts.url", Type: TypeString, Pattern: `^https://`})
	if err := r.Validate("alerts.url", "http://example.com"); err == nil {
		t.Error("expected registered pattern to reject http URL")
	}
}

func TestSetting_IsEmpty(t *testing.T) {
	s := &Setting{Type: TypeString}
	if !s.IsEmpty(nil) || !s.IsEmpty("") {
		t.Error("nil and empty string should be empty")
	}
	if s.IsEmpty("x") {
		t.Error("non-empty string should not be empty")
	}
	b := &Setting{Type: TypeBool}
	if b.IsEmpty(false) {
		t.Error("false is a value, not empty")
	}
}

func TestSettingType_String(t *testing.T) {
	tests := map[SettingType]string{
		TypeString:      "string",
		TypeInt:         "integer",
		TypeBool:        "boolean",
		TypeStringList:  "array",
		TypeEnum:        "enum",
		SettingType(99): "unknown",
	}
	for typ, want := range tests {
		if got := typ.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", typ, got, want)
		}
	}
}
