package config

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	steadyerrors "github.com/steadyops/steady/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	semverPattern        = regexp.MustCompile(`^\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z-.]+)?(?:\+[0-9A-Za-z-.]+)?$`)
	unitNamePattern      = regexp.MustCompile(`^[A-Za-z0-9:._@\\-]+$`)
	containerNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("semver", func(fl validator.FieldLevel) bool {
			return semverPattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("unit_name", func(fl validator.FieldLevel) bool {
			return unitNamePattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("container_name", func(fl validator.FieldLevel) bool {
			return containerNamePattern.MatchString(fl.Field().String())
		})

		// config_dir entries select payload subdirectories, never paths.
		_ = v.RegisterValidation("config_dir", func(fl validator.FieldLevel) bool {
			value := fl.Field().String()
			return value != "" && !strings.ContainsAny(value, "/\\") && value != "." && value != ".."
		})

		validateInst = v
	})

	return validateInst
}

// Validate performs schema and cross-field validation on the configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return steadyerrors.NewValidationError("config", "configuration is nil", nil)
	}

	v := validatorInstance()
	if err := v.Struct(cfg); err != nil {
		return convertValidationError(err)
	}

	if err := validateServices(&cfg.Services); err != nil {
		return err
	}
	if err := validateContainers(&cfg.Containers); err != nil {
		return err
	}
	return nil
}

func validateServices(svc *ServicesConfig) error {
	seenUnits := make(map[string]int, len(svc.Custom))
	for i, unit := range svc.Custom {
		key := unit.Scope + ":" + unit.Name
		if _, exists := seenUnits[key]; exists {
			return steadyerrors.NewValidationError(
				fmt.Sprintf("services.custom[%d].name", i),
				fmt.Sprintf("duplicate custom unit %q in scope %s", unit.Name, unit.Scope), nil)
		}
		seenUnits[key] = i

		if unit.Timer != "" && !strings.HasSuffix(unit.Name, ".service") && strings.Contains(unit.Name, ".") {
			return steadyerrors.NewValidationError(
				fmt.Sprintf("services.custom[%d].timer", i),
				fmt.Sprintf("timer declared for %q, which is not a service unit", unit.Name), nil)
		}
	}

	seenApps := make(map[string]int, len(svc.Autostart))
	for i, app := range svc.Autostart {
		if _, exists := seenApps[app.Name]; exists {
			return steadyerrors.NewValidationError(
				fmt.Sprintf("services.autostart[%d].name", i),
				fmt.Sprintf("duplicate autostart application %q", app.Name), nil)
		}
		seenApps[app.Name] = i
	}
	return nil
}

func validateContainers(c *ContainersConfig) error {
	seen := make(map[string]int, len(c.Containers))
	for i, cont := range c.Containers {
		if _, exists := seen[cont.Name]; exists {
			return steadyerrors.NewValidationError(
				fmt.Sprintf("containers.containers[%d].name", i),
				fmt.Sprintf("duplicate container %q", cont.Name), nil)
		}
		seen[cont.Name] = i
	}
	return nil
}

func convertValidationError(err error) error {
	if err == nil {
		return nil
	}

	if ves, ok := err.(validator.ValidationErrors); ok {
		ve := ves[0]
		field := configFieldName(ve)
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, ve.Tag())
		return steadyerrors.NewValidationError(field, msg, err)
	}

	return steadyerrors.NewValidationError("config", err.Error(), err)
}

func configFieldName(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	parts := strings.Split(ns, ".")
	var lowered []string
	for _, part := range parts {
		lowered = append(lowered, strings.ToLower(part))
	}
	return strings.Join(lowered, ".")
}
