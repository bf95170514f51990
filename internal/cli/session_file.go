package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// errNotLoggedIn - токен не найден ни во флаге, ни в окружении, ни в файле
var errNotLoggedIn = errors.New("not logged in, run 'tradeguard login' first")

// tokenEnv перекрывает файл сессии
const tokenEnv = "TRADEGUARD_TOKEN"

func saveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// loadToken: флаг, затем окружение, затем файл сессии
func loadToken(flagValue, path string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv(tokenEnv); env != "" {
		return env, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", errNotLoggedIn
		}
		return "", fmt.Errorf("failed to read session: %w", err)
	}

	token := strings.TrimSpace(string(content))
	if token == "" {
		return "", errNotLoggedIn
	}
	return token, nil
}

func removeToken(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
