package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/igorhaf/orbit-ai-optimizer/models"
)

// Key derives the exact-level cache key. It covers exactly the fields
// that change a completion: prompt, system prompt, usage type, model and
// temperature. Two logically identical requests always hash the same;
// any field difference changes the key.
func Key(req *models.CompletionRequest) string {
	payload := fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%s",
		req.Prompt,
		req.SystemPrompt,
		req.UsageType,
		req.Model,
		strconv.FormatFloat(req.Temperature, 'f', -1, 64),
	)
	hash := sha256.Sum256([]byte(payload))
	return "exact:" + hex.EncodeToString(hash[:])
}

// TemplateKey derives the template-level key for deterministic
// (zero-temperature) requests. It is keyed only by the prompt skeleton
// and the model, so prompts differing in non-semantic formatting share
// one entry.
func TemplateKey(req *models.CompletionRequest) string {
	payload := Skeleton(req.Prompt) + "\x00" + req.Model
	hash := sha256.Sum256([]byte(payload))
	return "template:" + hex.EncodeToString(hash[:])
}

// Skeleton normalizes a prompt to its template identity: whitespace
// runs collapse to a single space and casing is folded. Digits are kept
// because numeric differences are semantic.
func Skeleton(prompt string) string {
	return strings.ToLower(strings.Join(strings.Fields(prompt), " "))
}
