package cli

import (
	"os"
	"strings"
)

// Localization manages terminal message translations
type Localization struct {
	currentLanguage string
	texts           map[string]map[string]string
}

// Text keys for localization
const (
	KeyDownloading       = "downloading"
	KeyDownloadCompleted = "download_completed"
	KeyDownloadCancelled = "download_cancelled"
	KeyStoppingDownload  = "stopping_download"
	KeyDownloadError     = "download_error"
	KeyUnsupportedError  = "unsupported_error"
	KeyInvalidRequest    = "invalid_request"
	KeyAlreadyRunning    = "already_running"
	KeyErrorOpeningDir   = "error_opening_dir"
	KeyNoHistory         = "no_history"
	KeyConfigWritten     = "config_written"
	KeyToolMissing       = "tool_missing"
)

// NewLocalization creates a localization manager for lang.
// Unknown languages fall back to English.
func NewLocalization(lang string) *Localization {
	l := &Localization{
		currentLanguage: "en",
		texts:           make(map[string]map[string]string),
	}

	l.initializeTexts()
	l.SetLanguage(lang)
	return l
}

// SetLanguage sets the current language. "system" reads LANG.
func (l *Localization) SetLanguage(lang string) {
	if lang == "system" {
		lang = systemLanguage()
	}

	if _, exists := l.texts[lang]; exists {
		l.currentLanguage = lang
	}
}

// GetText returns localized text for the given key
func (l *Localization) GetText(key string) string {
	if texts, exists := l.texts[l.currentLanguage]; exists {
		if text, found := texts[key]; found {
			return text
		}
	}

	if texts, exists := l.texts["en"]; exists {
		if text, found := texts[key]; found {
			return text
		}
	}

	return key
}

// GetCurrentLanguage returns the current language code
func (l *Localization) GetCurrentLanguage() string {
	return l.currentLanguage
}

// GetAvailableLanguages returns map of available languages with their display names
func (l *Localization) GetAvailableLanguages() map[string]string {
	return map[string]string{
		"en": "English",
		"ru": "Русский",
		"pt": "Português",
	}
}

// systemLanguage maps LANG values like "ru_RU.UTF-8" to "ru"
func systemLanguage() string {
	lang := os.Getenv("LANG")
	if i := strings.IndexAny(lang, "_.@"); i >= 0 {
		lang = lang[:i]
	}
	return strings.ToLower(lang)
}

func (l *Localization) initializeTexts() {
	l.texts["en"] = map[string]string{
		KeyDownloading:       "Downloading",
		KeyDownloadCompleted: "Download completed",
		KeyDownloadCancelled: "Download cancelled",
		KeyStoppingDownload:  "Stopping download...",
		KeyDownloadError:     "Download error: ",
		KeyUnsupportedError:  "Unsupported error: ",
		KeyInvalidRequest:    "Invalid request",
		KeyAlreadyRunning:    "A download is already running",
		KeyErrorOpeningDir:   "Error opening directory",
		KeyNoHistory:         "No finished downloads yet",
		KeyConfigWritten:     "Config written to",
		KeyToolMissing:       "missing",
	}

	l.texts["ru"] = map[string]string{
		KeyDownloading:       "Загрузка",
		KeyDownloadCompleted: "Загрузка завершена",
		KeyDownloadCancelled: "Загрузка отменена",
		KeyStoppingDownload:  "Остановка загрузки...",
		KeyDownloadError:     "Ошибка загрузки: ",
		KeyUnsupportedError:  "Неподдерживаемый источник: ",
		KeyInvalidRequest:    "Неверный запрос",
		KeyAlreadyRunning:    "Загрузка уже выполняется",
		KeyErrorOpeningDir:   "Ошибка открытия папки",
		KeyNoHistory:         "Завершённых загрузок пока нет",
		KeyConfigWritten:     "Настройки сохранены в",
		KeyToolMissing:       "не найден",
	}

	l.texts["pt"] = map[string]string{
		KeyDownloading:       "Baixando",
		KeyDownloadCompleted: "Download concluído",
		KeyDownloadCancelled: "Download cancelado",
		KeyStoppingDownload:  "Parando download...",
		KeyDownloadError:     "Erro de download: ",
		KeyUnsupportedError:  "Erro de suporte: ",
		KeyInvalidRequest:    "Pedido inválido",
		KeyAlreadyRunning:    "Um download já está em andamento",
		KeyErrorOpeningDir:   "Erro ao abrir diretório",
		KeyNoHistory:         "Nenhum download concluído ainda",
		KeyConfigWritten:     "Configuração salva em",
		KeyToolMissing:       "ausente",
	}
}
