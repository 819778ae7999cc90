package sqlite

import "testing"

func TestParseVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{name: "001_session_kv.up.sql", want: 1},
		{name: "012_add_index.up.sql", want: 12},
		{name: "session_kv.up.sql", wantErr: true},
		{name: "000_zero.up.sql", wantErr: true},
		{name: "abc_nope.up.sql", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseVersion(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseVersion(%q) error = %v; wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseVersion(%q) = %d; want %d", tt.name, got, tt.want)
		}
	}
}

func TestEmbeddedMigrations_Sorted(t *testing.T) {
	t.Parallel()

	ms, err := embeddedMigrations()
	if err != nil {
		t.Fatalf("embeddedMigrations() error = %v", err)
	}
	if len(ms) == 0 {
		t.Fatal("embeddedMigrations() returned nothing")
	}
	for i := 1; i < len(ms); i++ {
		if ms[i-1].version >= ms[i].version {
			t.Errorf("migrations out of order: %s before %s", ms[i-1].name, ms[i].name)
		}
	}
}
