// Package storage сохраняет загрузки на локальный диск.
//
// Путь в БД имеет вид uploads/{owner}/{category}/{timestamp}_{name}; на диске
// он раскладывается под корнем Root из конфига.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Prefix — первый сегмент каждого сохранённого пути.
const Prefix = "uploads"

const chunkSize = 32 * 1024

// createAttempts — сколько меток времени пробуем при совпадении имени.
const createAttempts = 3

type Category string

const (
	Proposals    Category = "proposals"
	Deliverables Category = "deliverables"
	Avatar       Category = "avatar"
)

var ErrUnsafePath = errors.New("unsafe file path")

type Store struct {
	Root string
	now  func() time.Time
}

func New(root string) *Store {
	return &Store{Root: root, now: time.Now}
}

// SanitizeFilename заменяет пробел и разделители пути на "_".
// Кодировку и расширение не трогаем, формат проверяет вызывающий.
func SanitizeFilename(name string) string {
	return strings.NewReplacer(" ", "_", "/", "_", `\`, "_").Replace(name)
}

// Save пишет r на диск кусками по 32 КиБ и возвращает путь для записи в БД
// и число записанных байт. Недописанный файл удаляется.
func (s *Store) Save(owner uint, cat Category, filename string, r io.Reader) (string, int64, error) {
	dir := filepath.Join(s.Root, strconv.FormatUint(uint64(owner), 10), string(cat))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create upload dir: %w", err)
	}

	var (
		f          *os.File
		name, full string
		err        error
	)
	ts := s.now()
	for attempt := 1; ; attempt++ {
		name = stampOf(ts) + "_" + SanitizeFilename(filename)
		full = filepath.Join(dir, name)
		f, err = os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) || attempt == createAttempts {
			return "", 0, fmt.Errorf("create upload file: %w", err)
		}
		// то же имя в ту же микросекунду: сдвигаем метку
		ts = ts.Add(time.Microsecond)
	}

	// обёртка прячет (*os.File).ReadFrom, иначе буфер не используется
	n, err := io.CopyBuffer(struct{ io.Writer }{f}, r, make([]byte, chunkSize))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(full)
		return "", 0, fmt.Errorf("write upload file: %w", err)
	}

	return path.Join(Prefix, strconv.FormatUint(uint64(owner), 10), string(cat), name), n, nil
}

func stampOf(t time.Time) string {
	return strings.Replace(t.Format("20060102_150405.000000"), ".", "_", 1)
}

// Remove удаляет ранее сохранённый файл; отсутствие файла ошибкой не считается.
func (s *Store) Remove(rel string) error {
	full, err := s.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Resolve переводит сохранённый путь в путь на диске. Проверка чисто
// строковая: к файловой системе до её прохождения не обращаемся.
func (s *Store) Resolve(rel string) (string, error) {
	if rel == "" || strings.ContainsRune(rel, 0) {
		return "", ErrUnsafePath
	}
	slashed := strings.ReplaceAll(rel, `\`, "/")
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", ErrUnsafePath
	}
	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return "", ErrUnsafePath
		}
	}

	clean := path.Clean(slashed)
	tail, ok := strings.CutPrefix(clean, Prefix+"/")
	if !ok || tail == "" {
		return "", ErrUnsafePath
	}
	return filepath.Join(s.Root, filepath.FromSlash(tail)), nil
}

// Parse разбирает сохранённый путь на владельца и категорию.
func Parse(rel string) (owner uint, cat Category, err error) {
	parts := strings.Split(path.Clean(strings.ReplaceAll(rel, `\`, "/")), "/")
	if len(parts) < 4 || parts[0] != Prefix {
		return 0, "", ErrUnsafePath
	}
	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, "", ErrUnsafePath
	}
	return uint(id), Category(parts[2]), nil
}

// DisplayName — имя файла без метки времени.
func DisplayName(rel string) string {
	base := path.Base(strings.ReplaceAll(rel, `\`, "/"))
	// 20060102_150405_000000_
	if len(base) > 23 && base[22] == '_' {
		return base[23:]
	}
	return base
}
