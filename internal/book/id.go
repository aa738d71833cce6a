package book

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// IDLength is the number of hex characters in a book id.
const IDLength = 12

// NewID derives a book id from document content. Without salting the id is
// purely content-addressed, so uploading the same file twice yields the same
// book. With timestampSalt the upload time is mixed in and every upload
// starts a fresh book.
func NewID(content []byte, timestampSalt bool) string {
	salt := ""
	if timestampSalt {
		salt = strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return saltedID(content, salt)
}

func saltedID(content []byte, salt string) string {
	h := sha256.New()
	h.Write(content)
	if salt != "" {
		h.Write([]byte(salt))
	}
	return hex.EncodeToString(h.Sum(nil))[:IDLength]
}
