package decode

import (
	"encoding/json"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"SocialNet/tools/errs"
)

// Options 用于定制 Decode 行为。
type Options struct {
	// 宽松解码：例如 "123" -> int、1.0 -> int64
	WeaklyTypedInput bool
	// 未知字段报错（默认忽略）
	ErrorUnused bool
}

// DefaultOptions 返回默认选项。
func DefaultOptions() Options {
	return Options{WeaklyTypedInput: true}
}

// Decode 把 json.Unmarshal 得到的动态值（通常是 map[string]any）解码到 T。
// 字段读取使用 `json` tag。
func Decode[T any](in any, opts ...Options) (*T, error) {
	if in == nil {
		return nil, errs.ErrArgs.WrapMsg("decode: input is nil")
	}
	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}

	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
		ErrorUnused:      cfg.ErrorUnused,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			floatToIntHook(),
			jsonRawStringToMapHook(),
		),
	})
	if err != nil {
		return nil, errs.Wrap(err)
	}
	if err := dec.Decode(in); err != nil {
		return nil, errs.ErrArgs.WrapMsg("decode payload", "err", err.Error())
	}
	return &out, nil
}

// DecodeJSON 先把原始 JSON 解析为动态值再走 Decode，兼容数字字符串等宽松输入。
func DecodeJSON[T any](raw []byte, opts ...Options) (*T, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errs.ErrArgs.WrapMsg("invalid json", "err", err.Error())
	}
	return Decode[T](v, opts...)
}

// ReadString 从动态对象中读取 string 字段，数字会被格式化为字符串。
func ReadString(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64, json.Number:
		b, _ := json.Marshal(t)
		return string(b), true
	default:
		return "", false
	}
}

// floatToIntHook：把 float64 自动转为 int / int32 / int64。
func floatToIntHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.Float64 {
			return data, nil
		}
		switch to {
		case reflect.Int:
			return int(data.(float64)), nil
		case reflect.Int32:
			return int32(data.(float64)), nil
		case reflect.Int64:
			return int64(data.(float64)), nil
		}
		return data, nil
	}
}

// jsonRawStringToMapHook：把 JSON 字符串自动转为 map[string]any（嵌套字符串 JSON 字段）。
func jsonRawStringToMapHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.String || to != reflect.Map {
			return data, nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(data.(string)), &m); err == nil {
			return m, nil
		}
		return data, nil
	}
}
