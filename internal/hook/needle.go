package hook

import (
	"encoding/binary"
	"strings"

	"github.com/valyala/fastjson"
)

// TargetType is the Postgres type a needle's value is converted to.
type TargetType string

const (
	TargetText      TargetType = "text"
	TargetTimestamp TargetType = "timestamp"
)

// ActionKind decides what happens to a message based on a needle's
// filter result.
type ActionKind string

const (
	// ActionStore stores the field, or null, whatever happens.
	ActionStore ActionKind = "store"
	// ActionStoreTrue stores the field if the filter returns true and
	// otherwise discards the message, the same verdict ActionDiscardFalse
	// reaches on a failed filter.
	ActionStoreTrue ActionKind = "store_true"
	// ActionDiscardFalse discards the message if the filter returns false.
	ActionDiscardFalse ActionKind = "discard_false"
	// ActionDiscardTrue discards the message if the filter returns true.
	ActionDiscardTrue ActionKind = "discard_true"
	// ActionStoreMeta stores the field and publishes it as metadata.
	ActionStoreMeta ActionKind = "store_meta"
)

// FilterKind is the test applied to a needle's value.
type FilterKind string

const (
	FilterNoop   FilterKind = "noop"
	FilterMatch  FilterKind = "match"
	FilterSubstr FilterKind = "substr"
	FilterExists FilterKind = "exists"
)

func parseTargetType(s string) (TargetType, bool) {
	switch TargetType(s) {
	case TargetText, TargetTimestamp:
		return TargetType(s), true
	}
	return "", false
}

func parseActionKind(s string) (ActionKind, bool) {
	switch ActionKind(s) {
	case ActionStore, ActionStoreTrue, ActionDiscardFalse, ActionDiscardTrue, ActionStoreMeta:
		return ActionKind(s), true
	}
	return "", false
}

func parseFilterKind(s string) (FilterKind, bool) {
	switch FilterKind(s) {
	case FilterNoop, FilterMatch, FilterSubstr, FilterExists:
		return FilterKind(s), true
	}
	return "", false
}

// StoresOutput reports whether the action contributes a field to the
// serialized frame.
func (a ActionKind) StoresOutput() bool {
	return a == ActionStore || a == ActionStoreTrue || a == ActionStoreMeta
}

// NeedsLiteral reports whether the filter requires a comparison literal.
func (f FilterKind) NeedsLiteral() bool {
	return f == FilterMatch || f == FilterSubstr
}

// needleScratch holds the per-invocation output of one needle. The
// compiled needle set is shared between invocations and never written
// to; every Process call works on its own scratch slice.
type needleScratch struct {
	result    []byte
	absent    bool
	metadata  bool
	canonical []byte
}

// filterStrategy tests a resolved value. resolved is true when the
// pointer dereferenced to a value, including a JSON null.
type filterStrategy interface {
	accept(resolved bool, v *fastjson.Value) bool
}

type noopFilter struct{}

func (noopFilter) accept(bool, *fastjson.Value) bool { return true }

type matchFilter struct {
	literal string
}

func (f matchFilter) accept(resolved bool, v *fastjson.Value) bool {
	if !resolved || v.Type() == fastjson.TypeNull {
		// no data to match against
		return false
	}
	return string(canonicalBytes(v)) == f.literal
}

type substrFilter struct {
	literal string
}

func (f substrFilter) accept(resolved bool, v *fastjson.Value) bool {
	if !resolved || v.Type() == fastjson.TypeNull {
		// no data to match against
		return false
	}
	return strings.Contains(string(canonicalBytes(v)), f.literal)
}

type existsFilter struct{}

func (existsFilter) accept(resolved bool, _ *fastjson.Value) bool { return resolved }

// actionStrategy combines the filter result with the needle's role.
// apply returns false to discard the whole message. present is true
// when the pointer resolved to a non-null value.
type actionStrategy interface {
	apply(filterOK, present bool, scratch *needleScratch) bool
}

type storeAction struct{}

func (storeAction) apply(_, _ bool, _ *needleScratch) bool { return true }

type storeTrueAction struct{}

func (storeTrueAction) apply(filterOK, _ bool, _ *needleScratch) bool { return filterOK }

type discardFalseAction struct{}

func (discardFalseAction) apply(filterOK, _ bool, _ *needleScratch) bool { return filterOK }

type discardTrueAction struct{}

func (discardTrueAction) apply(filterOK, _ bool, _ *needleScratch) bool { return !filterOK }

type storeMetaAction struct{}

func (storeMetaAction) apply(_, present bool, scratch *needleScratch) bool {
	if present {
		scratch.metadata = true
	}
	return true
}

// formatConverter renders a resolved, non-null value into its wire form.
type formatConverter interface {
	convert(v *fastjson.Value, scratch *needleScratch) error
}

type textConverter struct{}

func (textConverter) convert(v *fastjson.Value, scratch *needleScratch) error {
	// Any JSON type can be cast to text
	scratch.result = canonicalBytes(v)
	return nil
}

type timestampConverter struct {
	leapDays []uint32
}

func (c timestampConverter) convert(v *fastjson.Value, scratch *needleScratch) error {
	epoch, err := parseEpochMicros(canonicalBytes(v), c.leapDays)
	if err != nil {
		return err
	}
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, epoch)
	scratch.result = out
	return nil
}

// canonicalBytes returns the canonical text form of a JSON value:
// strings are decoded, numbers keep their source representation, and
// objects and arrays are serialized compactly.
func canonicalBytes(v *fastjson.Value) []byte {
	if v.Type() == fastjson.TypeString {
		b, _ := v.StringBytes()
		return b
	}
	return v.MarshalTo(nil)
}

// needle is one compiled jpointer rule. Needles are immutable after
// compilation and shared across concurrent invocations.
type needle struct {
	pointer string
	tokens  []string
	valid   bool // pointer syntax was resolvable

	target TargetType
	action ActionKind
	filter FilterKind
	stores bool

	test    filterStrategy
	decide  actionStrategy
	convert formatConverter
}

// resolve dereferences the needle's pointer against the document root.
// A nil return means the pointer did not resolve; a JSON null resolves
// to a non-nil value of type null.
func (n *needle) resolve(root *fastjson.Value) *fastjson.Value {
	if !n.valid {
		return nil
	}
	return root.Get(n.tokens...)
}

// needleSet is the compiled form of a jsonexport configuration.
type needleSet struct {
	needles []*needle
	stored  uint16
	// leapyears are globally shared
	leapDays []uint32
}

// compile turns normalized rules into a needle set. The leap day table
// is aliased into every timestamp converter, never copied.
func compile(rules []Rule, leapDays []uint32) *needleSet {
	set := &needleSet{
		needles:  make([]*needle, 0, len(rules)),
		leapDays: leapDays,
	}

	for _, r := range rules {
		n := &needle{
			pointer: r.Pointer,
			target:  r.Type,
			action:  r.Action,
			filter:  r.Filter,
			stores:  r.Action.StoresOutput(),
		}
		n.tokens, n.valid = parsePointer(r.Pointer)

		switch r.Filter {
		case FilterMatch:
			n.test = matchFilter{literal: r.Literal}
		case FilterSubstr:
			n.test = substrFilter{literal: r.Literal}
		case FilterExists:
			n.test = existsFilter{}
		default:
			n.test = noopFilter{}
		}

		switch r.Action {
		case ActionStoreTrue:
			n.decide = storeTrueAction{}
		case ActionDiscardFalse:
			n.decide = discardFalseAction{}
		case ActionDiscardTrue:
			n.decide = discardTrueAction{}
		case ActionStoreMeta:
			n.decide = storeMetaAction{}
		default:
			n.decide = storeAction{}
		}

		switch r.Type {
		case TargetTimestamp:
			n.convert = timestampConverter{leapDays: leapDays}
		default:
			n.convert = textConverter{}
		}

		if n.stores {
			set.stored++
		}
		set.needles = append(set.needles, n)
	}

	return set
}

// parsePointer splits an RFC 6901 JSON pointer into reference tokens.
// ok is false for syntactically unresolvable pointers; such needles
// never resolve and always export null.
func parsePointer(p string) (tokens []string, ok bool) {
	if p == "" {
		return nil, true
	}
	if p[0] != '/' {
		return nil, false
	}
	tokens = strings.Split(p[1:], "/")
	for i, tok := range tokens {
		if strings.Contains(tok, "~") {
			tok = strings.ReplaceAll(tok, "~1", "/")
			tok = strings.ReplaceAll(tok, "~0", "~")
			tokens[i] = tok
		}
	}
	return tokens, true
}

