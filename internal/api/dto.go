package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"sqlinsight/internal/core"
	"sqlinsight/internal/service"
)

var validate = validator.New()

type credentialsRequest struct {
	Provider string `json:"db_provider" validate:"required,oneof=postgres mysql mariadb sqlite sqlserver"`
	Host     string `json:"db_host" validate:"required_unless=Provider sqlite"`
	Port     int    `json:"db_port" validate:"required_unless=Provider sqlite,gte=0,lte=65535"`
	DBName   string `json:"db_name" validate:"required"`
	Username string `json:"db_username"`
	Password string `json:"db_password"`
}

func (c credentialsRequest) credentials() service.Credentials {
	return service.Credentials{
		Provider: core.Provider(c.Provider),
		Host:     c.Host,
		Port:     c.Port,
		DBName:   c.DBName,
		Username: c.Username,
		Password: c.Password,
	}
}

type saveQueryRequest struct {
	DBID       int64  `json:"db_id" validate:"required,gt=0"`
	Name       string `json:"query_name" validate:"required,max=200"`
	Text       string `json:"query_text" validate:"required"`
	OutputType string `json:"output_type" validate:"required"`
}

type updateQueryRequest struct {
	Name       string `json:"query_name" validate:"omitempty,max=200"`
	Text       string `json:"query_text"`
	OutputType string `json:"output_type"`
}

type runQueryRequest struct {
	DBID       int64  `json:"db_id" validate:"required,gt=0"`
	Text       string `json:"query_text" validate:"required"`
	OutputType string `json:"output_type" validate:"required"`
}

type insightsRequest struct {
	CustomInstructions string `json:"custom_instructions"`
}

type dashboardRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description"`
	DBID        *int64   `json:"db_id" validate:"omitempty,gt=0"`
	Tags        []string `json:"tags" validate:"omitempty,dive,max=50"`
}

type layoutItem struct {
	QueryID int64 `json:"query_id" validate:"required,gt=0"`
	X       int   `json:"x" validate:"gte=0"`
	Y       int   `json:"y" validate:"gte=0"`
	W       int   `json:"w" validate:"gt=0"`
	H       int   `json:"h" validate:"gt=0"`
}

type layoutRequest struct {
	Layouts []layoutItem `json:"layouts" validate:"required,min=1,dive"`
}

type linkRequest struct {
	Layout *core.Layout `json:"layout"`
}

type apiKeyRequest struct {
	Description string `json:"description" validate:"max=200"`
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("validation: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}
