package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region fields
// fields reads typed values out of a request Struct. The first failure is
// kept in err and turned into InvalidArgument.
type fields struct {
	m   map[string]*structpb.Value
	err error
}

func read(s *structpb.Struct) *fields {
	return &fields{m: s.GetFields()}
}

func (f *fields) str(key string, required bool) string {
	v, ok := f.m[key]
	if !ok {
		if required {
			f.fail("missing %q", key)
		}
		return ""
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		f.fail("%q must be a string", key)
		return ""
	}
	return sv.StringValue
}

func (f *fields) integer(key string) int {
	v, ok := f.m[key]
	if !ok {
		f.fail("missing %q", key)
		return 0
	}
	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || nv.NumberValue != float64(int(nv.NumberValue)) {
		f.fail("%q must be an integer", key)
		return 0
	}
	return int(nv.NumberValue)
}

func (f *fields) boolean(key string) bool {
	v, ok := f.m[key]
	if !ok {
		return false
	}
	bv, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		f.fail("%q must be a bool", key)
		return false
	}
	return bv.BoolValue
}

func (f *fields) fail(format string, args ...any) {
	if f.err == nil {
		f.err = status.Errorf(codes.InvalidArgument, format, args...)
	}
}

// #endregion fields

// #region encode
func newStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return s, nil
}

// toStruct encodes v through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("to struct: %w", err)
	}
	return s, nil
}

// fromStruct decodes s into v through its JSON form.
func fromStruct(s *structpb.Struct, v any) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("from struct: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}

// #endregion encode
