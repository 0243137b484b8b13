package launch

import (
	"errors"
	"testing"
)

func TestArgument_DefaultValue(t *testing.T) {
	a := NewArgument("file_name", "gnss.yaml")

	if a.Value() != "gnss.yaml" {
		t.Errorf("Value() = %q, want %q", a.Value(), "gnss.yaml")
	}
	if a.IsSet() {
		t.Error("IsSet() = true before Set()")
	}
}

func TestArgument_Override(t *testing.T) {
	a := NewArgument("file_name", "gnss.yaml")
	a.Set("rover.yaml")

	if !a.IsSet() {
		t.Error("IsSet() = false after Set()")
	}
	if a.Value() != "rover.yaml" {
		t.Errorf("Value() = %q, want %q", a.Value(), "rover.yaml")
	}
}

func TestArgument_EmptyOverrideRecorded(t *testing.T) {
	a := NewArgument("file_name", "gnss.yaml")
	a.Set("")

	// An empty override is recorded; validity is checked at resolution.
	if a.Value() != "" {
		t.Errorf("Value() = %q, want empty", a.Value())
	}
}

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		name     string
		shareDir string
		fileName string
		want     string
		wantErr  error
	}{
		{
			name:     "default file name",
			shareDir: "/opt/share/septentrio_gnss_driver",
			fileName: "gnss.yaml",
			want:     "/opt/share/septentrio_gnss_driver/config/gnss.yaml",
		},
		{
			name:     "custom file name",
			shareDir: "/opt/share/septentrio_gnss_driver",
			fileName: "rover.yaml",
			want:     "/opt/share/septentrio_gnss_driver/config/rover.yaml",
		},
		{
			name:     "trailing slash on share dir",
			shareDir: "/opt/share/septentrio_gnss_driver/",
			fileName: "gnss.yaml",
			want:     "/opt/share/septentrio_gnss_driver/config/gnss.yaml",
		},
		{
			name:     "empty file name",
			shareDir: "/opt/share/septentrio_gnss_driver",
			fileName: "",
			wantErr:  ErrEmptyFileName,
		},
		{
			name:     "empty file name with empty share dir",
			shareDir: "",
			fileName: "",
			wantErr:  ErrEmptyFileName,
		},
		{
			name:     "empty share dir",
			shareDir: "",
			fileName: "gnss.yaml",
			wantErr:  ErrEmptyShareDir,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveConfigPath(tt.shareDir, tt.fileName)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveConfigPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveConfigArgument_DerivedPath(t *testing.T) {
	fileArg := NewArgument("file_name", "gnss.yaml")
	pathArg := NewArgument("path_to_config", "")

	got, err := ResolveConfigArgument("/opt/share/septentrio_gnss_driver", fileArg, pathArg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "/opt/share/septentrio_gnss_driver/config/gnss.yaml"
	if got != want {
		t.Errorf("ResolveConfigArgument() = %q, want %q", got, want)
	}
}

func TestResolveConfigArgument_ExplicitPathWins(t *testing.T) {
	fileArg := NewArgument("file_name", "gnss.yaml")
	pathArg := NewArgument("path_to_config", "")
	pathArg.Set("/etc/gnss/custom.yaml")

	got, err := ResolveConfigArgument("/opt/share/septentrio_gnss_driver", fileArg, pathArg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/etc/gnss/custom.yaml" {
		t.Errorf("ResolveConfigArgument() = %q, want explicit override", got)
	}
}

func TestResolveConfigArgument_EmptyFileName(t *testing.T) {
	fileArg := NewArgument("file_name", "gnss.yaml")
	fileArg.Set("")

	_, err := ResolveConfigArgument("/opt/share/septentrio_gnss_driver", fileArg, nil)
	if !errors.Is(err, ErrEmptyFileName) {
		t.Fatalf("error = %v, want ErrEmptyFileName", err)
	}
}
