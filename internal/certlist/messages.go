package certlist

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	msgPluginUnavailable     = "The signing plugin is not available"
	msgStoreAccess           = "Error accessing the certificate store"
	msgStoreOpen             = "Error opening the certificate store"
	msgCertificateList       = "Error retrieving the certificate list"
	msgNoCertificates        = "No certificates available"
	msgCertificateProcessing = "Error processing certificates"
	msgNotFound              = "Certificate not found"
)

var supported = []language.Tag{language.English, language.Russian, language.Spanish}

var matcher = language.NewMatcher(supported)

func init() {
	for _, tr := range []struct {
		tag  language.Tag
		key  string
		text string
	}{
		{language.Russian, msgPluginUnavailable, "Плагин для работы с электронной подписью недоступен"},
		{language.Russian, msgStoreAccess, "Ошибка при попытке доступа к хранилищу"},
		{language.Russian, msgStoreOpen, "Ошибка при открытии хранилища"},
		{language.Russian, msgCertificateList, "Ошибка получения списка сертификатов"},
		{language.Russian, msgNoCertificates, "Нет доступных сертификатов"},
		{language.Russian, msgCertificateProcessing, "Ошибка обработки сертификатов"},
		{language.Russian, msgNotFound, "Сертификат не найден"},
		{language.Spanish, msgPluginUnavailable, "El complemento de firma no está disponible"},
		{language.Spanish, msgStoreAccess, "Error al acceder al almacén de certificados"},
		{language.Spanish, msgStoreOpen, "Error al abrir el almacén de certificados"},
		{language.Spanish, msgCertificateList, "Error al obtener la lista de certificados"},
		{language.Spanish, msgNoCertificates, "No hay certificados disponibles"},
		{language.Spanish, msgCertificateProcessing, "Error al procesar los certificados"},
		{language.Spanish, msgNotFound, "Certificado no encontrado"},
	} {
		if err := message.SetString(tr.tag, tr.key, tr.text); err != nil {
			panic(err)
		}
	}
}

// Messages renders the fallback text of each error kind in one language.
type Messages struct {
	tag     language.Tag
	printer *message.Printer
}

// NewMessages picks the closest supported language for a BCP 47 tag.
// Unknown or empty tags fall back to English.
func NewMessages(lang string) Messages {
	tag := language.English
	if lang != "" {
		if t, err := language.Parse(lang); err == nil {
			_, idx, conf := matcher.Match(t)
			if conf != language.No {
				tag = supported[idx]
			}
		}
	}
	return Messages{tag: tag, printer: message.NewPrinter(tag)}
}

// Language returns the language messages are rendered in.
func (m Messages) Language() language.Tag {
	return m.tag
}

func (m Messages) text(key string) string {
	if m.printer == nil {
		return key
	}
	return m.printer.Sprintf(key)
}

// Fallback returns the fixed message for an error kind.
func (m Messages) Fallback(kind error) string {
	switch kind {
	case ErrPluginUnavailable:
		return m.text(msgPluginUnavailable)
	case ErrStoreAccess:
		return m.text(msgStoreAccess)
	case ErrStoreOpen:
		return m.text(msgStoreOpen)
	case ErrCertificateList:
		return m.text(msgCertificateList)
	case ErrNoCertificates:
		return m.text(msgNoCertificates)
	case ErrCertificateProcessing:
		return m.text(msgCertificateProcessing)
	case ErrNotFound:
		return m.text(msgNotFound)
	}
	return kind.Error()
}
