package locator

import (
	"strings"

	"github.com/SergeiKhy/url-service/internal/models"
)

// ParamsReferencePrefix namespaces references extracted from locator params
// when they are stored next to references of other origin.
const ParamsReferencePrefix = "locator:params:"

// PrefixReferences returns a copy of refs with prefix prepended to each name.
func PrefixReferences(prefix string, refs []models.Reference) []models.Reference {
	out := make([]models.Reference, 0, len(refs))
	for _, ref := range refs {
		ref.Name = prefix + ref.Name
		out = append(out, ref)
	}
	return out
}

// StripReferences keeps only the references whose name starts with prefix
// and removes the prefix from them.
func StripReferences(prefix string, refs []models.Reference) []models.Reference {
	out := make([]models.Reference, 0, len(refs))
	for _, ref := range refs {
		if !strings.HasPrefix(ref.Name, prefix) {
			continue
		}
		ref.Name = strings.TrimPrefix(ref.Name, prefix)
		out = append(out, ref)
	}
	return out
}

// FindReference returns the first reference matching both type and name.
func FindReference(refs []models.Reference, refType, name string) (models.Reference, bool) {
	for _, ref := range refs {
		if ref.Type == refType && ref.Name == name {
			return ref, true
		}
	}
	return models.Reference{}, false
}

// ReferenceID is FindReference's id, or "" when nothing matches.
func ReferenceID(refs []models.Reference, refType, name string) string {
	ref, ok := FindReference(refs, refType, name)
	if !ok {
		return ""
	}
	return ref.ID
}
