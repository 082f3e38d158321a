package authrpc

import (
	"fmt"
	"reflect"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// ProtoFile is the registered path of the AuthService schema.
const ProtoFile = "bookauth/auth.proto"

const (
	typeString = descriptorpb.FieldDescriptorProto_TYPE_STRING
	typeBool   = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	typeInt64  = descriptorpb.FieldDescriptorProto_TYPE_INT64
)

type protoField struct {
	name     string
	kind     descriptorpb.FieldDescriptorProto_Type
	repeated bool
}

// schema mirrors auth.proto. Field numbers follow slice order.
var schema = []struct {
	name   string
	fields []protoField
}{
	{"SignUpRequest", []protoField{{"email", typeString, false}, {"password", typeString, false}, {"first_name", typeString, false}, {"last_name", typeString, false}}},
	{"SignUpResponse", []protoField{{"user_id", typeString, false}}},
	{"SignInRequest", []protoField{{"email", typeString, false}, {"password", typeString, false}}},
	{"SignInResponse", []protoField{{"access_token", typeString, false}, {"refresh_token", typeString, false}}},
	{"RenewRequest", []protoField{{"access_token", typeString, false}, {"refresh_token", typeString, false}}},
	{"RenewResponse", []protoField{{"success", typeBool, false}, {"message", typeString, false}, {"access_token", typeString, false}, {"refresh_token", typeString, false}}},
	{"RevokeRequest", []protoField{{"refresh_token", typeString, false}}},
	{"RevokeResponse", nil},
	{"RevokeAllRequest", nil},
	{"RevokeAllResponse", []protoField{{"revoked", typeInt64, false}}},
	{"MeRequest", nil},
	{"MeResponse", []protoField{{"email", typeString, false}, {"roles", typeString, true}}},
	{"PingRequest", nil},
	{"PingResponse", []protoField{{"status", typeString, false}}},
}

var rpcs = []struct{ name, in, out string }{
	{"SignUp", "SignUpRequest", "SignUpResponse"},
	{"SignIn", "SignInRequest", "SignInResponse"},
	{"Renew", "RenewRequest", "RenewResponse"},
	{"Revoke", "RevokeRequest", "RevokeResponse"},
	{"RevokeAll", "RevokeAllRequest", "RevokeAllResponse"},
	{"Me", "MeRequest", "MeResponse"},
	{"Ping", "PingRequest", "PingResponse"},
}

// File describes bookauth/auth.proto. It is registered in
// protoregistry.GlobalFiles.
var File = mustRegisterFile()

func fileDescriptorProto() *descriptorpb.FileDescriptorProto {
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(ProtoFile),
		Package: proto.String("bookauth"),
		Syntax:  proto.String("proto3"),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/dmitrijs2005/bookauth/internal/authrpc"),
		},
	}

	for _, m := range schema {
		dp := &descriptorpb.DescriptorProto{Name: proto.String(m.name)}
		for i, f := range m.fields {
			label := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
			if f.repeated {
				label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED
			}
			dp.Field = append(dp.Field, &descriptorpb.FieldDescriptorProto{
				Name:   proto.String(f.name),
				Number: proto.Int32(int32(i + 1)),
				Label:  label.Enum(),
				Type:   f.kind.Enum(),
			})
		}
		fdp.MessageType = append(fdp.MessageType, dp)
	}

	sdp := &descriptorpb.ServiceDescriptorProto{Name: proto.String("AuthService")}
	for _, r := range rpcs {
		sdp.Method = append(sdp.Method, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(r.name),
			InputType:  proto.String(".bookauth." + r.in),
			OutputType: proto.String(".bookauth." + r.out),
		})
	}
	fdp.Service = append(fdp.Service, sdp)

	return fdp
}

func mustRegisterFile() protoreflect.FileDescriptor {
	fd, err := protodesc.NewFile(fileDescriptorProto(), protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("authrpc: build %s: %v", ProtoFile, err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("authrpc: register %s: %v", ProtoFile, err))
	}
	return fd
}

func descriptorFor(t reflect.Type) (protoreflect.MessageDescriptor, error) {
	md := File.Messages().ByName(protoreflect.Name(t.Name()))
	if md == nil {
		return nil, fmt.Errorf("authrpc: no message for %s", t.Name())
	}
	return md, nil
}

func newMessage[T any]() (*dynamicpb.Message, error) {
	md, err := descriptorFor(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return dynamicpb.NewMessage(md), nil
}

func jsonName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	return name
}

// toProto copies the struct v points to into a message of the same name.
// Struct fields are matched to proto fields by JSON name. A nil pointer
// gives an empty message.
func toProto(v any) (*dynamicpb.Message, error) {
	pv := reflect.ValueOf(v)
	if pv.Kind() != reflect.Pointer || pv.Type().Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("authrpc: want pointer to struct, got %T", v)
	}
	md, err := descriptorFor(pv.Type().Elem())
	if err != nil {
		return nil, err
	}
	msg := dynamicpb.NewMessage(md)
	if pv.IsNil() {
		return msg, nil
	}

	rv := pv.Elem()
	fields := md.Fields()
	for i := range rv.NumField() {
		sf := rv.Type().Field(i)
		fd := fields.ByJSONName(jsonName(sf))
		if fd == nil {
			return nil, fmt.Errorf("authrpc: %s.%s has no proto field", md.Name(), sf.Name)
		}
		f := rv.Field(i)
		if f.IsZero() {
			continue
		}
		if fd.IsList() {
			list := msg.NewField(fd).List()
			for j := range f.Len() {
				list.Append(protoreflect.ValueOf(f.Index(j).Interface()))
			}
			msg.Set(fd, protoreflect.ValueOfList(list))
			continue
		}
		msg.Set(fd, protoreflect.ValueOf(f.Interface()))
	}
	return msg, nil
}

// fromProto fills the struct v points to from m, the inverse of toProto.
func fromProto(m protoreflect.Message, v any) error {
	rv := reflect.ValueOf(v).Elem()
	fields := m.Descriptor().Fields()
	for i := range rv.NumField() {
		sf := rv.Type().Field(i)
		fd := fields.ByJSONName(jsonName(sf))
		if fd == nil {
			return fmt.Errorf("authrpc: %s.%s has no proto field", m.Descriptor().Name(), sf.Name)
		}
		if !m.Has(fd) {
			continue
		}
		f := rv.Field(i)
		if fd.IsList() {
			list := m.Get(fd).List()
			s := reflect.MakeSlice(f.Type(), list.Len(), list.Len())
			for j := range list.Len() {
				s.Index(j).Set(reflect.ValueOf(list.Get(j).Interface()))
			}
			f.Set(s)
			continue
		}
		f.Set(reflect.ValueOf(m.Get(fd).Interface()))
	}
	return nil
}
