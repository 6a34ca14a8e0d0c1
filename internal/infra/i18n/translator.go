package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

// DefaultLanguage backs every other locale for keys it does not define.
const DefaultLanguage = "en"

type Translator struct {
	lang         string
	translations map[string]string
}

// NewTranslator loads locales/<lang>.yaml on top of the default locale.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	if langCode == "" {
		langCode = DefaultLanguage
	}
	base, err := readLocale(fsys, DefaultLanguage)
	if err != nil {
		return nil, err
	}
	if langCode != DefaultLanguage {
		over, err := readLocale(fsys, langCode)
		if err != nil {
			return nil, err
		}
		for k, v := range over {
			base[k] = v
		}
	}
	return &Translator{lang: langCode, translations: base}, nil
}

func readLocale(fsys fs.FS, langCode string) (map[string]string, error) {
	// embed.FS wants forward slashes on every platform
	filePath := path.Join("locales", langCode+".yaml")
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	t, err := newTranslatorFromBytes(data)
	if err != nil {
		return nil, err
	}
	return t.translations, nil
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	translations := map[string]string{}
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{translations: translations}, nil
}

func (t *Translator) Lang() string { return t.lang }

// T returns the key itself when no translation exists.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}
