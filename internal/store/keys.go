package store

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
)

// EmailKey normalizes an email into a key safe for any backend.
func EmailKey(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// UploadKey is the object name of a document uploaded to a checklist slot.
func UploadKey(conversationID, documentID, fileName string) string {
	return conversationID + "/" + documentID + "/" + path.Base(strings.ReplaceAll(fileName, "\\", "/"))
}
