package lib

import (
	"fmt"
	"log"
	"os"
	"path"

	"github.com/yeqown/go-qrcode"
)

// SaveCodeQR renders an access code as a QR image under TEMP_DIR and
// returns the file path. The dashboard serves it for users who would
// rather scan than type at the keypad.
func SaveCodeQR(code string) (string, error) {
	qrc, err := qrcode.New(code)
	if err != nil {
		return "", err
	}
	tempdir := os.Getenv("TEMP_DIR")
	if tempdir == "" {
		tempdir = os.TempDir()
	}
	filepath := path.Join(tempdir, fmt.Sprintf("code_%s.jpeg", code))
	if err := qrc.Save(filepath); err != nil {
		log.Printf("Could not save qrcode to file [%s]: %s\n", filepath, err.Error())
		return "", err
	}
	return filepath, nil
}
