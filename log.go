// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package mqttlink

import (
	"context"
	"io"
	"log/slog"
	"reflect"

	"github.com/iancoleman/strcase"
)

type logger struct{ *slog.Logger }

func (l *logger) init() {
	if l.Logger == nil {
		l.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// Packet logs a request or event structure field-by-field at debug level.
func (l logger) Packet(name string, packet any) {
	// This is expensive; bail out if we don't need it.
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	val := realValue(reflect.ValueOf(packet))
	l.LogAttrs(context.Background(), slog.LevelDebug, name, reflectAttrs(val)...)
}

func reflectAttrs(val reflect.Value) []slog.Attr {
	typ := val.Type()
	num := typ.NumField()
	var attrs []slog.Attr
	for i := 0; i < num; i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}

		attrs = append(attrs, reflectAttr(
			strcase.ToSnake(f.Name),
			realValue(val.Field(i)),
		)...)
	}
	return attrs
}

func reflectAttr(name string, val reflect.Value) []slog.Attr {
	// Ignore zero values to keep the log cleaner.
	if val.Kind() == reflect.Invalid || val.IsZero() {
		return nil
	}

	// Fix QoS not being actually PascalCased.
	if name == "qo_s" {
		return []slog.Attr{slog.Any("qos", val.Interface())}
	}

	if v, ok := val.Interface().([]byte); ok {
		return []slog.Attr{slog.Int(name+"_len", len(v))}
	}

	return []slog.Attr{slog.Any(name, val.Interface())}
}

func realValue(typ reflect.Value) reflect.Value {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ
}
