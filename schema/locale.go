package schema

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PrinterFor returns a message printer for an Accept-Language header value.
// Languages without a registered message catalog fall back to fallback.
func PrinterFor(acceptLanguage string, fallback language.Tag) *message.Printer {
	return message.NewPrinter(MatchLanguage(acceptLanguage, fallback))
}

// MatchLanguage picks the best supported language for an Accept-Language
// header value.
func MatchLanguage(acceptLanguage string, fallback language.Tag) language.Tag {
	if acceptLanguage == "" {
		return fallback
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	supported := append([]language.Tag{fallback}, message.DefaultCatalog.Languages()...)
	tag, _, conf := language.NewMatcher(supported).Match(tags...)
	if conf == language.No {
		return fallback
	}
	return tag
}
