package handlers

import (
	"errors"
	"net/http"
	"strings"

	"policykeeper-hq/policykeeper/pkg/policy"
)

// Metadata describes a resource in answer to OPTIONS.
type Metadata struct {
	Name        string                          `json:"name"`
	Description string                          `json:"description"`
	Renders     []string                        `json:"renders"`
	Parses      []string                        `json:"parses"`
	Actions     map[string]map[string]FieldInfo `json:"actions,omitempty"`
}

// FieldInfo describes one policy field for a write action.
type FieldInfo struct {
	Type      string   `json:"type"`
	Required  bool     `json:"required"`
	ReadOnly  bool     `json:"read_only"`
	Label     string   `json:"label"`
	MaxLength int      `json:"max_length,omitempty"`
	Choices   []Choice `json:"choices,omitempty"`
}

// Choice is one allowed value of an enumerated field.
type Choice struct {
	Value       string `json:"value"`
	DisplayName string `json:"display_name"`
}

// policyFields is the field description shared by POST and PUT.
func policyFields() map[string]FieldInfo {
	choices := make([]Choice, 0, len(policy.Types()))
	for _, t := range policy.Types() {
		choices = append(choices, Choice{Value: string(t), DisplayName: t.Label()})
	}

	return map[string]FieldInfo{
		policy.FieldID:           {Type: "integer", ReadOnly: true, Label: "Policy id"},
		policy.FieldCustomerName: {Type: "string", Required: true, Label: "Customer name", MaxLength: policy.MaxCustomerNameLength},
		policy.FieldType:         {Type: "choice", Required: true, Label: "Policy type", Choices: choices},
		policy.FieldExpiryDate:   {Type: "date", Required: true, Label: "Expiry date"},
		policy.FieldIsExpired:    {Type: "boolean", ReadOnly: true, Label: "Is expired"},
	}
}

func newMetadata(name string) Metadata {
	return Metadata{
		Name:    name,
		Renders: []string{MediaTypeJSON},
		Parses:  []string{MediaTypeJSON, MediaTypeForm, MediaTypeMultipart},
	}
}

// CollectionOptions handles OPTIONS /policies/.
func (h *PolicyHandler) CollectionOptions(w http.ResponseWriter, r *http.Request) {
	md := newMetadata("Policy List")
	md.Actions = map[string]map[string]FieldInfo{http.MethodPost: policyFields()}

	w.Header().Set("Allow", strings.Join(collectionMethods, ", "))
	writeJSON(w, http.StatusOK, md)
}

// ItemOptions handles OPTIONS /policies/{id}/. The PUT action is only
// described when the policy exists.
func (h *PolicyHandler) ItemOptions(w http.ResponseWriter, r *http.Request) {
	md := newMetadata("Policy Instance")

	if id, ok := policyID(r); ok {
		_, err := h.service.Get(r.Context(), id)
		switch {
		case err == nil:
			md.Actions = map[string]map[string]FieldInfo{http.MethodPut: policyFields()}
		case !errors.Is(err, policy.ErrNotFound):
			writeError(w, r, h.logger, err)
			return
		}
	}

	w.Header().Set("Allow", strings.Join(itemMethods, ", "))
	writeJSON(w, http.StatusOK, md)
}
