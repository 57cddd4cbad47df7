package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/flicky/qbcart/internal/dto"
	"github.com/flicky/qbcart/internal/service"
)

// envelope is the body of every API response.
type envelope struct {
	Data   any    `json:"data"`
	Status string `json:"status"`
	Error  any    `json:"error"`
}

func ok(c *gin.Context, code int, data any) {
	c.JSON(code, envelope{Data: data, Status: "ok"})
}

func fail(c *gin.Context, code int, err any) {
	c.AbortWithStatusJSON(code, envelope{Status: "fail", Error: err})
}

var tagNames sync.Once

// useJSONFieldNames makes validation errors report the json name of a field.
func useJSONFieldNames() {
	tagNames.Do(func() {
		v, isValidator := binding.Validator.Engine().(*validator.Validate)
		if !isValidator {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
	})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "alphanum":
		return "must contain only letters and digits"
	default:
		return "failed on " + fe.Tag()
	}
}

// bindFailed answers 400 with a field → message map.
func bindFailed(c *gin.Context, err error) {
	var (
		verrs   validator.ValidationErrors
		typeErr *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &verrs):
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = validationMessage(fe)
		}
		fail(c, http.StatusBadRequest, fields)
	case errors.As(err, &typeErr):
		fail(c, http.StatusBadRequest, map[string]string{typeErr.Field: "must be a " + typeErr.Type.String()})
	default:
		fail(c, http.StatusBadRequest, map[string]string{"body": err.Error()})
	}
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, map[string]string{"id": "must be a valid id"})
		return uuid.Nil, false
	}
	return id, true
}

var errorStatus = []struct {
	err  error
	code int
}{
	{service.ErrProductNotFound, http.StatusNotFound},
	{service.ErrOrderNotFound, http.StatusNotFound},
	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrActivityNotFound, http.StatusNotFound},
	{service.ErrScheduleNotFound, http.StatusNotFound},
	{service.ErrForbidden, http.StatusForbidden},
	{service.ErrVersionConflict, http.StatusConflict},
	{service.ErrUserAlreadyExists, http.StatusConflict},
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrInvalidQuantity, http.StatusBadRequest},
	{service.ErrInvalidCost, http.StatusBadRequest},
	{service.ErrInvalidSchedule, http.StatusBadRequest},
}

// serviceError maps a service error onto a status. Unknown errors are
// attached to the context for the request logger and answered with 500.
func serviceError(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			fail(c, e.code, e.err.Error())
			return
		}
	}
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, "internal server error")
}

func outcome(c *gin.Context, o service.Outcome, resp dto.OutcomeResponse) {
	resp.Outcome = o.String()
	ok(c, http.StatusOK, resp)
}
