package fileHandlers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const (
	MaxAvatarSize    = 2 << 20
	MaxChatImageSize = 5 << 20
)

var (
	ErrTooLarge   = errors.New("file_too_large")
	ErrNotImage   = errors.New("not_image")
	ErrBadDataURL = errors.New("bad_data_url")
)

// Kind describes where a picture goes and how ffmpeg should convert it, if at all.
type Kind struct {
	Folder   string
	MaxBytes int64
	// FFmpegArgs are placed between the input and output pipes. Empty means store as is.
	FFmpegArgs []string
}

var Avatar = Kind{
	Folder:   "avatars",
	MaxBytes: MaxAvatarSize,
	FFmpegArgs: []string{
		"-vf", "crop=min(iw\\,ih):min(iw\\,ih):(iw-min(iw\\,ih))/2:(ih-min(iw\\,ih))/2,scale=256:256",
		"-vframes", "1",
		"-c:v", "libwebp",
		"-quality", "50",
		"-preset", "default",
		"-f", "webp",
	},
}

var ChatImage = Kind{
	Folder:   "images",
	MaxBytes: MaxChatImageSize,
}

var mutex sync.Mutex

var sugar = zap.NewNop().Sugar()
var storageDir = filepath.Join(".", "public")

var lookPath = exec.LookPath

func Setup(_sugar *zap.SugaredLogger, _storageDir string) {
	sugar = _sugar
	storageDir = _storageDir

	_, err := lookPath("ffmpeg")
	if err != nil {
		sugar.Warn("ffmpeg wasn't found, avatars will be stored without conversion")
	}
}

// HandlePicture reads the form file in field, checks it's an image of acceptable size,
// converts it and stores it. Returns the public /cdn/ URL.
func HandlePicture(r *http.Request, field string, kind Kind) (string, error) {
	// parse formfile
	picFormFile, header, err := r.FormFile(field)
	if err != nil {
		return "", err
	}
	defer func() {
		err := picFormFile.Close()
		if err != nil {
			sugar.Error(err)
		}
	}()

	if header.Size > kind.MaxBytes {
		return "", ErrTooLarge
	}

	inputBytes, err := readLimited(picFormFile, kind.MaxBytes)
	if err != nil {
		return "", err
	}

	return Store(r.Context(), inputBytes, kind)
}

// Store converts and saves an image that was already read into memory.
func Store(ctx context.Context, inputBytes []byte, kind Kind) (string, error) {
	if int64(len(inputBytes)) > kind.MaxBytes {
		return "", ErrTooLarge
	}

	mime, err := sniffImage(inputBytes)
	if err != nil {
		return "", err
	}

	resultBytes := inputBytes
	extension := mime.Extension()

	if len(kind.FFmpegArgs) > 0 {
		if _, err := lookPath("ffmpeg"); err == nil {
			resultBytes, err = convert(ctx, inputBytes, kind.FFmpegArgs)
			if err != nil {
				return "", err
			}
			extension = ".webp"
		}
	}

	fileName, err := save(resultBytes, extension, kind.Folder)
	if err != nil {
		return "", err
	}

	return "/cdn/" + kind.Folder + "/" + fileName, nil
}

// DataURL builds an inline preview of an image. size is checked before anything is read.
func DataURL(size int64, r io.Reader, maxBytes int64) (string, error) {
	if size > maxBytes {
		return "", ErrTooLarge
	}

	data, err := readLimited(r, maxBytes)
	if err != nil {
		return "", err
	}

	mime, err := sniffImage(data)
	if err != nil {
		return "", err
	}

	return "data:" + mime.String() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// DecodeDataURL is the reverse of DataURL.
func DecodeDataURL(dataURL string) ([]byte, error) {
	header, payload, found := strings.Cut(dataURL, ",")
	if !found || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, ErrBadDataURL
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadDataURL, err)
	}
	return data, nil
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

func IsImage(data []byte) bool {
	_, err := sniffImage(data)
	return err == nil
}

func sniffImage(data []byte) (*mimetype.MIME, error) {
	mime := mimetype.Detect(data)
	// svg can carry scripts
	if !strings.HasPrefix(mime.String(), "image/") || mime.Is("image/svg+xml") {
		return nil, ErrNotImage
	}
	return mime, nil
}

func convert(ctx context.Context, inputBytes []byte, args []string) ([]byte, error) {
	cmdArgs := append([]string{"-i", "pipe:0"}, args...)
	cmdArgs = append(cmdArgs, "pipe:1")

	cmd := exec.CommandContext(ctx, "ffmpeg", cmdArgs...)
	cmd.Stdin = bytes.NewReader(inputBytes)

	// this will store the converted image result
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	err := cmd.Run()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}

	return stdout.Bytes(), nil
}

func save(data []byte, extension string, folder string) (string, error) {
	// use the hash for filename
	hash := sha256.Sum256(data)

	fileName := hex.EncodeToString(hash[:]) + extension
	folderPath := filepath.Join(storageDir, folder)
	fullPath := filepath.Join(folderPath, fileName)

	mutex.Lock()
	defer mutex.Unlock()

	// make folders if they don't exist yet
	err := os.MkdirAll(folderPath, os.ModePerm)
	if err != nil {
		return "", err
	}

	// same hash means same picture, nothing to write
	_, err = os.Stat(fullPath)
	if os.IsNotExist(err) {
		err = os.WriteFile(fullPath, data, 0644)
		if err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	return fileName, nil
}
