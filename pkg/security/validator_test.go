package security

import "testing"

func TestValidateSocketPath(t *testing.T) {
	v := NewValidator(DefaultConfig())

	cases := []struct {
		name    string
		path    string
		wantErr Code
	}{
		{"empty", "", EmptyPath},
		{"valid", "/tmp/janus.sock", ""},
		{"too long", "/tmp/" + string(make([]byte, 110)), PathTooLong},
		{"traversal", "/tmp/../etc/passwd", PathTraversalAttempt},
		{"forbidden dir", "/etc/janus.sock", ForbiddenDirectory},
		{"bad chars", "/tmp/janus sock!.sock", InvalidPathCharacters},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := v.ValidateSocketPath(c.path)
			if c.wantErr == "" {
				if f != nil {
					t.Fatalf("expected valid, got %v", f)
				}
				return
			}
			if f == nil || f.Code != c.wantErr {
				t.Fatalf("expected %s, got %v", c.wantErr, f)
			}
		})
	}
}

func TestValidateSocketPathBoundary(t *testing.T) {
	v := NewValidator(DefaultConfig())
	// Construct a path of exactly 108 bytes under an allowed prefix.
	base := "/tmp/"
	pad := 108 - len(base)
	path108 := base + repeat("a", pad)
	if len(path108) != 108 {
		t.Fatalf("test setup: want 108 bytes, got %d", len(path108))
	}
	if f := v.ValidateSocketPath(path108); f != nil {
		t.Fatalf("108-byte path should be valid, got %v", f)
	}

	path109 := path108 + "a"
	if f := v.ValidateSocketPath(path109); f == nil || f.Code != PathTooLong {
		t.Fatalf("109-byte path should be PATH_TOO_LONG, got %v", f)
	}
}

func repeat(s string, n int) string {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}

func TestValidateName(t *testing.T) {
	v := NewValidator(DefaultConfig())
	if f := v.ValidateName("", "request"); f == nil || f.Code != EmptyName {
		t.Fatalf("empty name should fail with EMPTY_NAME, got %v", f)
	}
	if f := v.ValidateName("valid_name-1", "request"); f != nil {
		t.Fatalf("expected valid, got %v", f)
	}
	if f := v.ValidateName("bad name!", "request"); f == nil || f.Code != InvalidNameCharacters {
		t.Fatalf("expected INVALID_NAME_CHARACTERS, got %v", f)
	}
}

func TestValidateTimeoutBoundary(t *testing.T) {
	v := NewValidator(DefaultConfig())
	if f := v.ValidateTimeout(0.1); f != nil {
		t.Fatalf("0.1s should be valid, got %v", f)
	}
	if f := v.ValidateTimeout(0.099); f == nil || f.Code != TimeoutTooSmall {
		t.Fatalf("0.099s should be TIMEOUT_TOO_SMALL, got %v", f)
	}
	if f := v.ValidateTimeout(300.0); f != nil {
		t.Fatalf("300.0s should be valid, got %v", f)
	}
	if f := v.ValidateTimeout(300.01); f == nil || f.Code != TimeoutTooLarge {
		t.Fatalf("300.01s should be TIMEOUT_TOO_LARGE, got %v", f)
	}
}

func TestValidateUUID(t *testing.T) {
	v := NewValidator(DefaultConfig())
	if f := v.ValidateUUID("550e8400-e29b-41d4-a716-446655440000"); f != nil {
		t.Fatalf("expected valid v4 UUID, got %v", f)
	}
	// Wrong version digit (5 instead of 4) in position 14.
	if f := v.ValidateUUID("550e8400-e29b-51d4-a716-446655440000"); f == nil || f.Code != InvalidUUID {
		t.Fatalf("expected INVALID_UUID for wrong version digit, got %v", f)
	}
}

func TestValidateTimestamp(t *testing.T) {
	v := NewValidator(DefaultConfig())
	cases := []struct {
		ts      string
		wantErr bool
	}{
		{"2025-07-29T10:50:00.000Z", false},
		{"2025-13-01T10:50:00.000Z", true},
		{"2024-02-29T00:00:00.000Z", false},
		{"2025-02-29T00:00:00.000Z", true},
	}
	for _, c := range cases {
		f := v.ValidateTimestamp(c.ts)
		if c.wantErr && f == nil {
			t.Errorf("%s: expected failure, got valid", c.ts)
		}
		if !c.wantErr && f != nil {
			t.Errorf("%s: expected valid, got %v", c.ts, f)
		}
	}
}

func TestValidateResponseInvariant(t *testing.T) {
	v := NewValidator(DefaultConfig())
	id := "550e8400-e29b-41d4-a716-446655440000"
	if f := v.ValidateResponse(ResponseShape{ID: id, Success: true, HasResult: true}); f != nil {
		t.Fatalf("success-only response should be valid, got %v", f)
	}
	if f := v.ValidateResponse(ResponseShape{ID: id, Success: true, HasError: true}); f == nil || f.Code != ConflictingSuccessError {
		t.Fatalf("expected CONFLICTING_SUCCESS_ERROR, got %v", f)
	}
	if f := v.ValidateResponse(ResponseShape{ID: id, Success: false}); f == nil || f.Code != MissingErrorField {
		t.Fatalf("expected MISSING_ERROR_FIELD, got %v", f)
	}
}
