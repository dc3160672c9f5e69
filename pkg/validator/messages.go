package validator

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys. English output is the key itself.
const (
	MsgRequired      = "is required"
	MsgMin           = "must be at least %s"
	MsgMax           = "must be at most %s"
	MsgGTE           = "must be greater than or equal to %s"
	MsgLTE           = "must be less than or equal to %s"
	MsgOneOf         = "must be one of: %s"
	MsgUUID          = "must be a valid UUID"
	MsgURL           = "must be a valid URL"
	MsgRule          = "failed on '%s' validation"
	MsgNotANumber    = "must be a number"
	MsgNotABool      = "must be true or false"
	MsgRequestFailed = "request validation failed"
)

var supported = []language.Tag{language.English, language.Vietnamese}

var matcher = language.NewMatcher(supported)

var vietnamese = map[string]string{
	MsgRequired:      "là bắt buộc",
	MsgMin:           "phải có ít nhất %s",
	MsgMax:           "phải có nhiều nhất %s",
	MsgGTE:           "phải lớn hơn hoặc bằng %s",
	MsgLTE:           "phải nhỏ hơn hoặc bằng %s",
	MsgOneOf:         "phải là một trong: %s",
	MsgUUID:          "phải là UUID hợp lệ",
	MsgURL:           "phải là URL hợp lệ",
	MsgRule:          "không thỏa mãn quy tắc '%s'",
	MsgNotANumber:    "phải là một số",
	MsgNotABool:      "phải là true hoặc false",
	MsgRequestFailed: "yêu cầu không hợp lệ",
}

func init() {
	for key, msg := range vietnamese {
		RegisterMessage(language.Vietnamese, key, msg)
	}
}

// RegisterMessage adds a translation for key. Packages with their own
// validation rules call it from init.
func RegisterMessage(tag language.Tag, key, msg string) {
	_ = message.SetString(tag, key, msg)
}

// MatchLanguage picks the best supported language for an Accept-Language
// header value. English is the default.
func MatchLanguage(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return language.English
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, _ := matcher.Match(tags...)
	return supported[idx]
}

// Translate formats key in the given language.
func Translate(tag language.Tag, key string, args ...any) string {
	return message.NewPrinter(tag).Sprintf(key, args...)
}
