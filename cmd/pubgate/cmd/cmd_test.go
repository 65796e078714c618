package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rulesYAML = `requirements:
  - entity: properties
    attribute: price
    label: 価格
    required_for: [land, house]
  - entity: properties
    attribute: address
    label: 所在地
    required_for: [land, house, apartment]
  - entity: land_info
    attribute: land_area
    label: 土地面積
    required_for: [land]
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidateCommand_Blocked(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "rules.yaml", rulesYAML)
	snap := writeFile(t, dir, "snap.json", `{
		"record": {"property_type": "land", "price": 0, "address": "東京都港区"},
		"pending": {"address": "  "}
	}`)

	out, err := run(t, "validate", "--snapshot", snap, "--rules", rules, "--status", "公開", "--current", "非公開")
	require.ErrorIs(t, err, ErrBlocked)
	assert.Contains(t, out, `"is_valid": false`)
	assert.Contains(t, out, "「公開」にするには次の項目を入力してください: 土地面積、所在地")
}

func TestValidateCommand_Passes(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "rules.yaml", rulesYAML)
	snap := writeFile(t, dir, "snap.json", `{
		"record": {"property_type": "apartment", "address": "大阪市北区"},
		"requested_status": "会員公開"
	}`)

	out, err := run(t, "validate", "--snapshot", snap, "--rules", rules)
	require.NoError(t, err)
	assert.Contains(t, out, `"is_valid": true`)
}

func TestValidateCommand_RequiresStatus(t *testing.T) {
	dir := t.TempDir()
	snap := writeFile(t, dir, "snap.json", `{"record": {}}`)

	_, err := run(t, "validate", "--snapshot", snap)
	assert.Error(t, err)
}

func TestRulesCommand(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "rules.yaml", rulesYAML)

	out, err := run(t, "rules", "--type", "land", "--rules", rules)
	require.NoError(t, err)
	assert.Contains(t, out, "land_area")
	assert.Contains(t, out, "価格")
	assert.Less(t, bytes.Index([]byte(out), []byte("land_area")), bytes.Index([]byte(out), []byte("address")))
}

func TestSeedCommand_SQLite(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "rules.yaml", rulesYAML)
	cfg := writeFile(t, dir, "app.yaml", "database:\n  driver: sqlite\n  path: "+dir+"\n  name: cli_test\n")

	out, err := run(t, "--config", cfg, "seed", "--file", rules)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 3 field requirements")

	out, err = run(t, "--config", cfg, "rules", "--type", "apartment")
	require.NoError(t, err)
	assert.Contains(t, out, "所在地")
	assert.NotContains(t, out, "land_area")
}
