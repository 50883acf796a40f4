// Package security implements the pure validation functions that gate
// every exterior string and size crossing the Janus wire boundary:
// socket paths, identifiers, timeouts, UUIDs, timestamps, and message
// content. Every function here is total — it returns a decision for any
// input in bounded time and never panics.
package security

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Code is a stable, machine-readable failure code for a validation refusal.
type Code string

const (
	EmptyPath              Code = "EMPTY_PATH"
	PathTooLong            Code = "PATH_TOO_LONG"
	NullByteInjection       Code = "NULL_BYTE_INJECTION"
	PathTraversalAttempt    Code = "PATH_TRAVERSAL_ATTEMPT"
	InvalidPathCharacters   Code = "INVALID_PATH_CHARACTERS"
	ForbiddenDirectory      Code = "FORBIDDEN_DIRECTORY"

	EmptyName               Code = "EMPTY_NAME"
	NameTooLong             Code = "NAME_TOO_LONG"
	InvalidNameCharacters   Code = "INVALID_NAME_CHARACTERS"
	InvalidUTF8             Code = "INVALID_UTF8"

	InvalidTimeout Code = "INVALID_TIMEOUT"
	TimeoutTooSmall Code = "TIMEOUT_TOO_SMALL"
	TimeoutTooLarge Code = "TIMEOUT_TOO_LARGE"

	InvalidUUID Code = "INVALID_UUID"

	InvalidTimestamp Code = "INVALID_TIMESTAMP"

	MessageTooLarge  Code = "MESSAGE_TOO_LARGE"
	InvalidJSON      Code = "INVALID_JSON"
	ArgsTooLarge     Code = "ARGS_TOO_LARGE"

	ConflictingSuccessError Code = "CONFLICTING_SUCCESS_ERROR"
	MissingErrorField       Code = "MISSING_ERROR_FIELD"
	MissingResultField      Code = "MISSING_RESULT_FIELD"
)

// Failure is a structured, stable-coded validation refusal.
type Failure struct {
	Code   Code
	Detail string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Detail)
}

func fail(code Code, format string, args ...interface{}) *Failure {
	return &Failure{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Config holds the tunable bounds the validator enforces. Zero-value
// fields are replaced by DefaultConfig's values in NewValidator.
type Config struct {
	MaxNameLength      int
	MaxArgsSize        int
	MaxTotalSize       int
	MinTimeout         float64
	MaxTimeout         float64
	AllowedDirectories []string
	MaxSocketPathLen   int
}

// DefaultConfig returns the bounds from spec.md §6.
func DefaultConfig() Config {
	return Config{
		MaxNameLength:      256,
		MaxArgsSize:        5 * 1024 * 1024,
		MaxTotalSize:       10 * 1024 * 1024,
		MinTimeout:         0.1,
		MaxTimeout:         300.0,
		AllowedDirectories: []string{"/tmp/", "/var/run/", "/var/tmp/"},
		MaxSocketPathLen:   108,
	}
}

var (
	namePattern      = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	pathCharPattern  = regexp.MustCompile(`^[A-Za-z0-9/_.-]+$`)
	uuidV4Pattern    = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)
	timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`)
)

// Validator groups the configured bounds. It carries no mutable state —
// every method is a pure function of its arguments and Config.
type Validator struct {
	cfg Config
}

// NewValidator builds a Validator, filling any zero-valued Config field
// from DefaultConfig.
func NewValidator(cfg Config) *Validator {
	d := DefaultConfig()
	if cfg.MaxNameLength == 0 {
		cfg.MaxNameLength = d.MaxNameLength
	}
	if cfg.MaxArgsSize == 0 {
		cfg.MaxArgsSize = d.MaxArgsSize
	}
	if cfg.MaxTotalSize == 0 {
		cfg.MaxTotalSize = d.MaxTotalSize
	}
	if cfg.MinTimeout == 0 {
		cfg.MinTimeout = d.MinTimeout
	}
	if cfg.MaxTimeout == 0 {
		cfg.MaxTimeout = d.MaxTimeout
	}
	if len(cfg.AllowedDirectories) == 0 {
		cfg.AllowedDirectories = d.AllowedDirectories
	}
	if cfg.MaxSocketPathLen == 0 {
		cfg.MaxSocketPathLen = d.MaxSocketPathLen
	}
	return &Validator{cfg: cfg}
}

// ValidateSocketPath enforces spec.md §4.1's socket path rules.
func (v *Validator) ValidateSocketPath(p string) *Failure {
	if p == "" {
		return fail(EmptyPath, "socket path is empty")
	}
	if len(p) > v.cfg.MaxSocketPathLen {
		return fail(PathTooLong, "socket path length %d exceeds maximum %d", len(p), v.cfg.MaxSocketPathLen)
	}
	if strings.ContainsRune(p, 0) {
		return fail(NullByteInjection, "socket path contains a NUL byte")
	}
	if strings.Contains(p, "../") {
		return fail(PathTraversalAttempt, "socket path contains a traversal sequence")
	}
	if !pathCharPattern.MatchString(p) {
		return fail(InvalidPathCharacters, "socket path contains characters outside [A-Za-z0-9/_.-]")
	}
	allowed := false
	for _, dir := range v.cfg.AllowedDirectories {
		if strings.HasPrefix(p, dir) {
			allowed = true
			break
		}
	}
	if !allowed {
		return fail(ForbiddenDirectory, "socket path must begin with one of %v", v.cfg.AllowedDirectories)
	}
	return nil
}

// ValidateName enforces spec.md §4.1's identifier rules. kind labels the
// identifier class in error detail text (e.g. "request", "argument").
func (v *Validator) ValidateName(n string, kind string) *Failure {
	if n == "" {
		return fail(EmptyName, "%s name is empty", kind)
	}
	if len(n) > v.cfg.MaxNameLength {
		return fail(NameTooLong, "%s name length %d exceeds maximum %d", kind, len(n), v.cfg.MaxNameLength)
	}
	if strings.ContainsRune(n, 0) {
		return fail(NullByteInjection, "%s name contains a NUL byte", kind)
	}
	if !utf8.ValidString(n) {
		return fail(InvalidUTF8, "%s name is not valid UTF-8", kind)
	}
	if !namePattern.MatchString(n) {
		return fail(InvalidNameCharacters, "%s name contains characters outside [A-Za-z0-9_-]", kind)
	}
	return nil
}

// ValidateTimeout enforces spec.md §4.1's timeout bounds.
func (v *Validator) ValidateTimeout(t float64) *Failure {
	if isNaNOrInf(t) {
		return fail(InvalidTimeout, "timeout %v is not finite", t)
	}
	if t < v.cfg.MinTimeout {
		return fail(TimeoutTooSmall, "timeout %.3f is below minimum %.3f", t, v.cfg.MinTimeout)
	}
	if t > v.cfg.MaxTimeout {
		return fail(TimeoutTooLarge, "timeout %.3f exceeds maximum %.3f", t, v.cfg.MaxTimeout)
	}
	return nil
}

func isNaNOrInf(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// ValidateUUID enforces the RFC 4122 v4 pattern from spec.md §4.1.
func (v *Validator) ValidateUUID(u string) *Failure {
	if !uuidV4Pattern.MatchString(u) {
		return fail(InvalidUUID, "%q is not a valid v4 UUID", u)
	}
	return nil
}

// ValidateTimestamp enforces strict ISO-8601-with-milliseconds and
// real-calendar-date parsing per spec.md §4.1 and §8's boundary cases.
func (v *Validator) ValidateTimestamp(s string) *Failure {
	if !timestampPattern.MatchString(s) {
		return fail(InvalidTimestamp, "%q is not YYYY-MM-DDTHH:MM:SS.sssZ", s)
	}
	if _, err := time.Parse("2006-01-02T15:04:05.000Z", s); err != nil {
		return fail(InvalidTimestamp, "%q does not parse to a real calendar date: %v", s, err)
	}
	return nil
}

// ValidateMessageContent enforces size, NUL-byte, UTF-8, and JSON
// validity on a serialized wire payload.
func (v *Validator) ValidateMessageContent(serialized []byte) *Failure {
	if len(serialized) > v.cfg.MaxTotalSize {
		return fail(MessageTooLarge, "message size %d exceeds maximum %d", len(serialized), v.cfg.MaxTotalSize)
	}
	for _, b := range serialized {
		if b == 0 {
			return fail(NullByteInjection, "message contains a NUL byte")
		}
	}
	if !utf8.Valid(serialized) {
		return fail(InvalidUTF8, "message is not valid UTF-8")
	}
	var v2 interface{}
	if err := json.Unmarshal(serialized, &v2); err != nil {
		return fail(InvalidJSON, "message is not valid JSON: %v", err)
	}
	return nil
}

// ValidateArgsSize enforces the args-payload size cap independently of
// the total message cap.
func (v *Validator) ValidateArgsSize(args map[string]interface{}) *Failure {
	if args == nil {
		return nil
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return fail(InvalidJSON, "args are not JSON-serializable: %v", err)
	}
	if len(encoded) > v.cfg.MaxArgsSize {
		return fail(ArgsTooLarge, "args size %d exceeds maximum %d", len(encoded), v.cfg.MaxArgsSize)
	}
	return nil
}

// ParseTimeoutString parses a textual timeout override (as used by CLI
// flags) into a float64 without validating its bounds.
func ParseTimeoutString(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// RequestShape is the minimal view of a request datagram the validator
// needs; kept decoupled from pkg/wire to avoid an import cycle.
type RequestShape struct {
	ID        string
	Request   string
	Timeout   float64
	Timestamp string
	ReplyTo   string
}

// ValidateRequest checks a request's shape and scalar fields: non-empty
// id/request name, valid UUID, valid name, valid timestamp, and (when
// set) a valid timeout and reply_to path.
func (v *Validator) ValidateRequest(r RequestShape) *Failure {
	if f := v.ValidateUUID(r.ID); f != nil {
		return f
	}
	if f := v.ValidateName(r.Request, "request"); f != nil {
		return f
	}
	if f := v.ValidateTimestamp(r.Timestamp); f != nil {
		return f
	}
	if r.Timeout != 0 {
		if f := v.ValidateTimeout(r.Timeout); f != nil {
			return f
		}
	}
	if r.ReplyTo != "" {
		if f := v.ValidateSocketPath(r.ReplyTo); f != nil {
			return f
		}
	}
	return nil
}

// ResponseShape is the minimal view of a response datagram needed to
// check the success/error exclusivity invariant.
type ResponseShape struct {
	RequestID    string
	ID           string
	Success      bool
	HasResult    bool
	HasError     bool
}

// ValidateResponse enforces spec.md §3's success XOR error invariant.
func (v *Validator) ValidateResponse(r ResponseShape) *Failure {
	if f := v.ValidateUUID(r.ID); f != nil {
		return f
	}
	if r.Success && r.HasError {
		return fail(ConflictingSuccessError, "a successful response must not carry an error field")
	}
	if !r.Success && !r.HasError {
		return fail(MissingErrorField, "a failed response must carry an error field")
	}
	return nil
}
