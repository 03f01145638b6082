package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	playground "github.com/go-playground/validator/v10"
)

const (
	MaxChannelNameLength = 30
	MaxServerNameLength  = 64
	MaxInviteCodeLength  = 32
	minDisplayNameLength = 3
	maxDisplayNameLength = 64
)

var (
	emailRegex       = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._+-]*[a-zA-Z0-9])?@[a-zA-Z0-9]([a-zA-Z0-9.-]*[a-zA-Z0-9])?\.[a-zA-Z]{2,}$`)
	channelNameRegex = regexp.MustCompile(`^[a-z0-9-]+$`)
	whitespaceRegex  = regexp.MustCompile(`\s+`)
)

// Messages maps error codes to the text shown to users.
var Messages = map[string]string{
	"long_email":        "Email address is too long.",
	"bad_format":        "Invalid email address.",
	"short_password":    "Password must be at least 6 characters.",
	"long_password":     "Password must be at most 72 characters.",
	"short_displayname": "Display name must be at least 3 characters.",
	"long_displayname":  "Display name must be at most 64 characters.",
	"empty_channel":     "Channel name cannot be empty.",
	"long_channel":      "Channel name cannot exceed 30 characters.",
	"bad_channel":       "Channel name can only contain lowercase letters, numbers, and hyphens.",
	"empty_server":      "Server name cannot be empty.",
	"long_server":       "Server name cannot exceed 64 characters.",
	"empty_invite":      "Invite code cannot be empty.",
	"long_invite":       "Invite code is too long.",
}

// Message returns the user facing text for an error produced by this package.
func Message(err error) string {
	if msg, ok := Messages[err.Error()]; ok {
		return msg
	}
	return err.Error()
}

func Email(email string) error {
	const maxlength = 64

	if len(email) > maxlength {
		return fmt.Errorf("long_email")
	}

	if !emailRegex.MatchString(email) {
		return fmt.Errorf("bad_format")
	}

	return nil
}

func Password(password string) error {
	length := len(password)
	if length < 6 {
		return fmt.Errorf("short_password")
	} else if length > 72 { // bcrypt ignores anything past 72 bytes
		return fmt.Errorf("long_password")
	}
	return nil
}

func DisplayName(displayName string) error {
	length := utf8.RuneCountInString(strings.TrimSpace(displayName))
	if length < minDisplayNameLength {
		return fmt.Errorf("short_displayname")
	} else if length > maxDisplayNameLength {
		return fmt.Errorf("long_displayname")
	}
	return nil
}

// FormatChannelName trims, lowercases and turns runs of whitespace into a single hyphen.
func FormatChannelName(name string) string {
	return whitespaceRegex.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// ChannelName validates an already formatted channel name.
func ChannelName(name string) error {
	if name == "" {
		return fmt.Errorf("empty_channel")
	}
	if utf8.RuneCountInString(name) > MaxChannelNameLength {
		return fmt.Errorf("long_channel")
	}
	if !channelNameRegex.MatchString(name) {
		return fmt.Errorf("bad_channel")
	}
	return nil
}

func ServerName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("empty_server")
	}
	if utf8.RuneCountInString(name) > MaxServerNameLength {
		return fmt.Errorf("long_server")
	}
	return nil
}

func InviteCode(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("empty_invite")
	}
	if len(code) > MaxInviteCodeLength {
		return fmt.Errorf("long_invite")
	}
	return nil
}

var validate = newStructValidator()

func newStructValidator() *playground.Validate {
	v := playground.New(playground.WithRequiredStructEnabled())

	register := func(tag string, check func(string) error) {
		err := v.RegisterValidation(tag, func(fl playground.FieldLevel) bool {
			return check(fl.Field().String()) == nil
		})
		if err != nil {
			panic(err)
		}
	}

	register("password", Password)
	register("displayname", DisplayName)
	register("channelname", func(s string) error { return ChannelName(FormatChannelName(s)) })

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	return v
}

// Struct validates s using its `validate` tags and returns field name to failed tag.
// A nil map means s is valid.
func Struct(s any) (map[string]string, error) {
	err := validate.Struct(s)
	if err == nil {
		return nil, nil
	}

	var validateErrs playground.ValidationErrors
	if !errors.As(err, &validateErrs) {
		return nil, err
	}

	fieldErrors := make(map[string]string, len(validateErrs))
	for _, e := range validateErrs {
		fieldErrors[e.Field()] = e.Tag()
	}
	return fieldErrors, nil
}
