package provision

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabkimd/userprov/pkg/copytree"
	perrors "github.com/kabkimd/userprov/pkg/errors"
	"github.com/kabkimd/userprov/pkg/filesystem"
	"github.com/kabkimd/userprov/pkg/testutil"
	"github.com/kabkimd/userprov/pkg/types"
)

var sampleTemplate = map[string]string{
	"index.html":          "<html></html>",
	"style.css":           "body { margin: 0; }",
	"script.js":           "console.log('hi')",
	"pictures/header.png": "png",
	"fonts/inter.woff2":   "font",
}

func setup(t *testing.T, usersJSON string) (afero.Fs, Options) {
	t.Helper()

	fsys := afero.NewMemMapFs()
	testutil.WriteTree(t, fsys, "/work/template", sampleTemplate)
	testutil.WriteTree(t, fsys, "/work", map[string]string{"users.json": usersJSON})

	return fsys, Options{
		UserListPath:  "/work/users.json",
		TemplateRoot:  "/work/template",
		BaseOutputDir: "/work/users",
	}
}

func TestRun_ProvisionsEveryUser(t *testing.T) {
	fsys, opts := setup(t, `[{"username": "alice"}, {"username": "bob"}]`)

	summary, err := New(fsys).Run(opts)
	require.NoError(t, err)

	require.Len(t, summary.Users, 2)
	assert.Equal(t, "alice", summary.Users[0].Username)
	assert.Equal(t, "bob", summary.Users[1].Username)
	assert.True(t, summary.BaseCreated)

	for _, name := range []string{"alice", "bob"} {
		assert.Equal(t, sampleTemplate, testutil.ReadTree(t, fsys, filepath.Join("/work/users", name)), name)
	}
	assert.Equal(t, 10, summary.TotalFiles())
	assert.Equal(t, filepath.Join("/work/users", "alice"), summary.Users[0].Destination)
}

func TestRun_StyleSheetBytesMatch(t *testing.T) {
	fsys, opts := setup(t, `[{"username": "alice"}]`)

	_, err := New(fsys).Run(opts)
	require.NoError(t, err)

	want, err := afero.ReadFile(fsys, "/work/template/style.css")
	require.NoError(t, err)
	got, err := afero.ReadFile(fsys, "/work/users/alice/style.css")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRun_Idempotent(t *testing.T) {
	fsys, opts := setup(t, `[{"username": "alice"}]`)
	p := New(fsys)

	_, err := p.Run(opts)
	require.NoError(t, err)
	once := testutil.ReadTree(t, fsys, "/work/users")

	summary, err := p.Run(opts)
	require.NoError(t, err)
	assert.Equal(t, once, testutil.ReadTree(t, fsys, "/work/users"))
	assert.False(t, summary.BaseCreated)
	assert.Equal(t, 0, summary.Users[0].DirsCreated)
}

func TestRun_PreservesDestinationOnlyFiles(t *testing.T) {
	fsys, opts := setup(t, `[{"username": "alice"}]`)
	testutil.WriteTree(t, fsys, "/work/users/alice", map[string]string{
		"my-sketch.js":        "mine",
		"pictures/selfie.jpg": "jpg",
		"style.css":           "stale",
	})

	_, err := New(fsys).Run(opts)
	require.NoError(t, err)

	tree := testutil.ReadTree(t, fsys, "/work/users/alice")
	assert.Equal(t, "mine", tree["my-sketch.js"])
	assert.Equal(t, "jpg", tree["pictures/selfie.jpg"])
	assert.Equal(t, sampleTemplate["style.css"], tree["style.css"])
	for rel := range sampleTemplate {
		assert.Contains(t, tree, rel)
	}
}

func TestRun_EmptyUserList(t *testing.T) {
	fsys, opts := setup(t, `[]`)

	summary, err := New(fsys).Run(opts)
	require.NoError(t, err)
	assert.Empty(t, summary.Users)

	isDir, err := afero.DirExists(fsys, "/work/users")
	require.NoError(t, err)
	assert.True(t, isDir)

	entries, err := afero.ReadDir(fsys, "/work/users")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_MalformedInputCreatesNothing(t *testing.T) {
	for name, content := range map[string]string{
		"broken json":      `[{"username": "alice"`,
		"missing username": `[{"username": "alice"}, {"email": "bob@example.com"}]`,
		"not an array":     `{"username": "alice"}`,
	} {
		t.Run(name, func(t *testing.T) {
			fsys, opts := setup(t, content)

			summary, err := New(fsys).Run(opts)
			require.Error(t, err)
			assert.Nil(t, summary)
			assert.True(t, perrors.IsErrorCode(err, perrors.ErrInput), "got %v", err)

			exists, err := afero.Exists(fsys, "/work/users")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestRun_MissingUserList(t *testing.T) {
	fsys, opts := setup(t, `[]`)
	opts.UserListPath = "/work/nope.json"

	_, err := New(fsys).Run(opts)
	require.Error(t, err)
	assert.True(t, perrors.IsErrorCode(err, perrors.ErrInput))
}

func TestRun_TemplateProblems(t *testing.T) {
	t.Run("missing template", func(t *testing.T) {
		fsys, opts := setup(t, `[{"username": "alice"}]`)
		opts.TemplateRoot = "/work/absent"

		_, err := New(fsys).Run(opts)
		require.Error(t, err)
		assert.True(t, perrors.IsErrorCode(err, perrors.ErrFilesystem))

		exists, _ := afero.Exists(fsys, "/work/users")
		assert.False(t, exists, "nothing is written when the template is missing")
	})

	t.Run("template is a file", func(t *testing.T) {
		fsys, opts := setup(t, `[{"username": "alice"}]`)
		opts.TemplateRoot = "/work/users.json"

		_, err := New(fsys).Run(opts)
		require.Error(t, err)
		assert.True(t, perrors.IsErrorCode(err, perrors.ErrFilesystem))
	})

	t.Run("output inside template", func(t *testing.T) {
		fsys, opts := setup(t, `[{"username": "alice"}]`)
		opts.BaseOutputDir = "/work/template/users"

		_, err := New(fsys).Run(opts)
		require.Error(t, err)
		assert.True(t, perrors.IsErrorCode(err, perrors.ErrFilesystem))
		assert.Equal(t, sampleTemplate, testutil.ReadTree(t, fsys, "/work/template"))
	})

	t.Run("user named after the template", func(t *testing.T) {
		fsys, opts := setup(t, `[{"username": "template"}]`)
		opts.BaseOutputDir = "/work"

		summary, err := New(fsys).Run(opts)
		require.Error(t, err)
		assert.True(t, perrors.IsErrorCode(err, perrors.ErrFilesystem))
		assert.Equal(t, "template", perrors.GetErrorDetails(err)[perrors.DetailUser])
		assert.Equal(t, sampleTemplate, testutil.ReadTree(t, fsys, "/work/template"))
		require.Len(t, summary.Users, 1)
	})
}

func TestRun_BaseOutputDirIsFile(t *testing.T) {
	fsys, opts := setup(t, `[{"username": "alice"}]`)
	require.NoError(t, afero.WriteFile(fsys, "/work/users", []byte("x"), 0644))

	_, err := New(fsys).Run(opts)
	require.Error(t, err)
	assert.True(t, perrors.IsErrorCode(err, perrors.ErrFilesystem))
	assert.Equal(t, "/work/users", perrors.GetErrorDetails(err)[perrors.DetailPath])
}

func TestRun_FailFast(t *testing.T) {
	fsys, opts := setup(t, `[{"username": "alice"}, {"username": "bob"}, {"username": "carol"}]`)
	// bob's destination collides with a file
	testutil.WriteTree(t, fsys, "/work/users", map[string]string{"bob": "not a directory"})

	summary, err := New(fsys).Run(opts)
	require.Error(t, err)
	assert.True(t, perrors.IsErrorCode(err, perrors.ErrFilesystem))
	assert.Equal(t, "bob", perrors.GetErrorDetails(err)[perrors.DetailUser])

	require.Len(t, summary.Users, 2)
	assert.False(t, summary.Users[0].Failed())
	assert.True(t, summary.Users[1].Failed())

	exists, _ := afero.Exists(fsys, "/work/users/carol")
	assert.False(t, exists, "users after the failure are not processed")
}

func TestRun_ContinueOnError(t *testing.T) {
	fsys, opts := setup(t, `[{"username": "alice"}, {"username": "bob"}, {"username": "carol"}]`)
	testutil.WriteTree(t, fsys, "/work/users", map[string]string{"bob": "not a directory"})
	opts.ContinueOnError = true

	summary, err := New(fsys).Run(opts)
	require.Error(t, err)
	assert.True(t, perrors.IsErrorCode(err, perrors.ErrFilesystem))
	assert.Equal(t, []string{"bob"}, perrors.GetErrorDetails(err)["users"])

	require.Len(t, summary.Users, 3)
	assert.True(t, summary.Users[1].Failed())
	assert.NotEmpty(t, summary.Users[1].Error)
	assert.Equal(t, sampleTemplate, testutil.ReadTree(t, fsys, "/work/users/carol"))
}

func TestRun_DryRun(t *testing.T) {
	fsys, opts := setup(t, `[{"username": "alice"}]`)
	opts.DryRun = true

	var events []copytree.Event
	opts.OnEntry = func(username string, ev copytree.Event) {
		assert.Equal(t, "alice", username)
		events = append(events, ev)
	}

	summary, err := New(fsys).Run(opts)
	require.NoError(t, err)

	assert.True(t, summary.DryRun)
	assert.True(t, summary.BaseCreated)
	assert.Equal(t, len(sampleTemplate), summary.TotalFiles())
	assert.NotEmpty(t, events)

	exists, _ := afero.Exists(fsys, "/work/users")
	assert.False(t, exists)
}

func TestProvision_ValidatesRecords(t *testing.T) {
	fsys, opts := setup(t, `[]`)

	_, err := New(fsys).Provision([]types.UserRecord{{Username: "alice"}, {Username: "../../etc"}}, opts)
	require.Error(t, err)
	assert.True(t, perrors.IsErrorCode(err, perrors.ErrInput))
	assert.Equal(t, 1, perrors.GetErrorDetails(err)[perrors.DetailIndex])
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	assert.Equal(t, DefaultUserListPath, opts.UserListPath)
	assert.Equal(t, DefaultTemplateRoot, opts.TemplateRoot)
	assert.Equal(t, DefaultBaseOutputDir, opts.BaseOutputDir)
}

func TestRun_OnDisk(t *testing.T) {
	testutil.SkipOnWindows(t)

	root := t.TempDir()
	testutil.CreateFile(t, root, "users.json", `[{"username": "alice"}]`)
	testutil.CreateFile(t, root, "template/style.css", "body {}")
	testutil.CreateFile(t, root, "template/pictures/a.png", "png")

	summary, err := New(afero.NewOsFs()).Run(Options{
		UserListPath:  filepath.Join(root, "users.json"),
		TemplateRoot:  filepath.Join(root, "template"),
		BaseOutputDir: filepath.Join(root, "out", "nested", "users"),
	})
	require.NoError(t, err)
	assert.True(t, summary.BaseCreated)

	testutil.AssertFileContent(t, filepath.Join(root, "out", "nested", "users", "alice", "style.css"), "body {}")
	testutil.AssertFileContent(t, filepath.Join(root, "out", "nested", "users", "alice", "pictures", "a.png"), "png")

	src, err := os.Stat(filepath.Join(root, "template", "style.css"))
	require.NoError(t, err)
	dst, err := os.Stat(filepath.Join(root, "out", "nested", "users", "alice", "style.css"))
	require.NoError(t, err)
	assert.True(t, src.ModTime().Equal(dst.ModTime()))
}

func TestRun_DestinationLinkedToTemplate(t *testing.T) {
	testutil.SkipOnWindows(t)

	root := t.TempDir()
	testutil.CreateFile(t, root, "users.json", `[{"username": "alice"}, {"username": "bob"}]`)
	testutil.CreateFile(t, root, "template/style.css", "body{}")
	testutil.CreateFile(t, root, "template/pictures/a.png", "png")
	testutil.CreateSymlink(t, filepath.Join(root, "template"), filepath.Join(root, "users", "alice"))

	summary, err := New(afero.NewOsFs()).Run(Options{
		UserListPath:  filepath.Join(root, "users.json"),
		TemplateRoot:  filepath.Join(root, "template"),
		BaseOutputDir: filepath.Join(root, "users"),
	})
	require.Error(t, err)
	assert.True(t, perrors.IsErrorCode(err, perrors.ErrFilesystem))
	assert.Equal(t, "alice", perrors.GetErrorDetails(err)[perrors.DetailUser])
	require.Len(t, summary.Users, 1)

	testutil.AssertFileContent(t, filepath.Join(root, "template", "style.css"), "body{}")
	testutil.AssertFileContent(t, filepath.Join(root, "template", "pictures", "a.png"), "png")
}

func TestRun_OutputLinkedIntoTemplate(t *testing.T) {
	testutil.SkipOnWindows(t)

	root := t.TempDir()
	testutil.CreateFile(t, root, "users.json", `[{"username": "alice"}]`)
	testutil.CreateFile(t, root, "template/style.css", "body{}")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "template", "homes"), 0755))
	testutil.CreateSymlink(t, filepath.Join(root, "template", "homes"), filepath.Join(root, "users"))

	_, err := New(afero.NewOsFs()).Run(Options{
		UserListPath:  filepath.Join(root, "users.json"),
		TemplateRoot:  filepath.Join(root, "template"),
		BaseOutputDir: filepath.Join(root, "users"),
	})
	require.Error(t, err)
	assert.True(t, perrors.IsErrorCode(err, perrors.ErrFilesystem))
	assert.False(t, testutil.DirExists(t, filepath.Join(root, "template", "homes", "alice")))
}

// statFailFs fails Stat for one path with a permission error.
type statFailFs struct {
	afero.Fs
	path string
}

func (f statFailFs) Stat(name string) (os.FileInfo, error) {
	if name == f.path {
		return nil, &os.PathError{Op: "stat", Path: name, Err: os.ErrPermission}
	}
	return f.Fs.Stat(name)
}

func TestRun_DryRunReportsStatFailure(t *testing.T) {
	fsys, opts := setup(t, `[{"username": "alice"}]`)
	opts.DryRun = true

	_, err := New(statFailFs{Fs: fsys, path: "/work/users"}).Run(opts)
	require.Error(t, err)
	assert.True(t, perrors.IsErrorCode(err, perrors.ErrFilesystem))
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, "/work/users", perrors.GetErrorDetails(err)[perrors.DetailPath])
}

func TestRun_DryRunBaseOutputDirIsFile(t *testing.T) {
	fsys, opts := setup(t, `[{"username": "alice"}]`)
	opts.DryRun = true
	require.NoError(t, afero.WriteFile(fsys, "/work/users", []byte("x"), 0644))

	_, err := New(fsys).Run(opts)
	require.Error(t, err)
	assert.True(t, perrors.IsErrorCode(err, perrors.ErrFilesystem))
	assert.ErrorIs(t, err, filesystem.ErrNotDirectory)
}
