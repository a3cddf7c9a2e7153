package validation

import (
	"strings"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

type registerBody struct {
	TripID           string `json:"trip_id" binding:"required"`
	ParticipantCount int    `json:"participant_count" binding:"required,min=1,max=50"`
	Email            string `json:"contact_email" binding:"omitempty,email"`
}

func TestFromBindError(t *testing.T) {
	var in registerBody
	err := binding.JSON.BindBody([]byte(`{"participant_count":99,"contact_email":"nope"}`), &in)
	fields := FromBindError(err, &in)

	assert.Equal(t, "This field is required.", fields["trip_id"])
	assert.Equal(t, "Must be at most 50.", fields["participant_count"])
	assert.Equal(t, "Enter a valid email address.", fields["contact_email"])
}

func TestFromBindError_TypeMismatch(t *testing.T) {
	var in registerBody
	err := binding.JSON.BindBody([]byte(`{"trip_id":"x","participant_count":"two"}`), &in)
	fields := FromBindError(err, &in)
	assert.Contains(t, fields, "participant_count")
}

func TestFromBindError_Garbage(t *testing.T) {
	var in registerBody
	err := binding.JSON.BindBody([]byte(strings.Repeat("{", 3)), &in)
	fields := FromBindError(err, &in)
	assert.Equal(t, "Request body is not valid JSON.", fields["_"])
}
