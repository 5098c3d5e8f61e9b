package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/nimeshabuddhika/storefront-orders/pkg"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// IsEmpty checks if a string is empty.
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

func GetTraceID(c *gin.Context) (string, error) {
	traceID := c.GetString(pkg.TraceId)
	if IsEmpty(traceID) {
		return "", errors.New("trace id is empty")
	}
	return traceID, nil
}

// ParseStructEnv binds env vars to struct fields using a mapstructure tag
func ParseStructEnv(cfg interface{}) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		if err := viper.BindEnv(tag); err != nil {
			return err
		}
	}
	return viper.Unmarshal(cfg)
}

// FormatConfigErrors turns validator errors into one readable error naming the env keys at fault.
// Values are never logged since the config carries secrets.
func FormatConfigErrors(logger *zap.Logger, err error, cfg interface{}) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	t := reflect.TypeOf(cfg)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		key := fe.Field()
		// slice elements checked with dive come back as Field[i]
		name, index, dived := strings.Cut(fe.StructField(), "[")
		if f, ok := t.FieldByName(name); ok {
			if tag := f.Tag.Get("mapstructure"); tag != "" {
				key = tag
				if dived {
					key += "[" + index
				}
			}
		}
		msg := fmt.Sprintf("%s failed '%s'", key, fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s failed '%s=%s'", key, fe.Tag(), fe.Param())
		}
		logger.Error("invalid configuration", zap.String("key", key), zap.String("rule", fe.Tag()))
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
