package profile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/notebook-translator/internal/secrets"
	"github.com/nerdneilsfield/notebook-translator/pkg/providers/factory"
)

func newTestManager(t *testing.T) (*Manager, secrets.Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "profiles.json")
	store, err := OpenStore(path)
	require.NoError(t, err)

	secretStore := secrets.NewMemoryStore()
	mgr, err := NewManager(store, secretStore)
	require.NoError(t, err)

	return mgr, secretStore, path
}

func chatProfile(name string) Profile {
	return Profile{
		Name:     name,
		Provider: factory.ProviderChatAPI,
		BaseURL:  "https://api.example.com/v1",
		Model:    "gpt-4o-mini",
	}
}

func TestManager_EmptyListPlaceholder(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	list := mgr.List()
	require.Len(t, list, 1)
	assert.Equal(t, "default", list[0].Name)
	assert.Equal(t, factory.ProviderMock, list[0].Provider)
}

func TestManager_ActiveNeverFails(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	// 空列表：回退到占位档
	assert.Equal(t, "default", mgr.Active().Name)

	// 有配置档但从未设置 active：回退到第一个
	require.NoError(t, mgr.Add(chatProfile("first")))
	assert.Equal(t, "first", mgr.Active().Name)

	// active 指向已删除的配置档：回退到第一个
	require.NoError(t, mgr.Add(chatProfile("second")))
	require.NoError(t, mgr.SetActive("second"))
	require.NoError(t, mgr.Delete("second"))
	assert.Equal(t, "first", mgr.Active().Name)
}

func TestManager_SecretIsolation(t *testing.T) {
	mgr, secretStore, path := newTestManager(t)

	p := chatProfile("work")
	p.APIKey = "sk-super-secret"
	require.NoError(t, mgr.Add(p))

	// 密钥进入安全存储
	secret, err := secretStore.Get("work")
	require.NoError(t, err)
	assert.Equal(t, "sk-super-secret", secret)

	// 持久化文件里不出现密钥
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-super-secret")

	// 内存中的记录同样被抹掉
	got, err := mgr.Get("work")
	require.NoError(t, err)
	assert.Empty(t, got.APIKey)
}

func TestManager_LegacyMigration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")

	// 旧版本格式：密钥内联在配置文件里
	legacy := state{
		Profiles: []Profile{
			{Name: "old", Provider: factory.ProviderChatAPI, BaseURL: "https://api.example.com/v1", Model: "gpt-4o-mini", APIKey: "legacy-key"},
		},
		Active: "old",
	}
	data, err := json.Marshal(&legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	store, err := OpenStore(path)
	require.NoError(t, err)

	secretStore := secrets.NewMemoryStore()
	mgr, err := NewManager(store, secretStore)
	require.NoError(t, err)

	secret, err := secretStore.Get("old")
	require.NoError(t, err)
	assert.Equal(t, "legacy-key", secret)

	persisted, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(persisted), "legacy-key")

	got, err := mgr.Get("old")
	require.NoError(t, err)
	assert.Empty(t, got.APIKey)
}

func TestManager_SetActiveRecordsPrevious(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	require.NoError(t, mgr.Add(chatProfile("a")))
	require.NoError(t, mgr.Add(chatProfile("b")))

	require.NoError(t, mgr.SetActive("a"))
	require.NoError(t, mgr.SetActive("b"))

	// 重复设置同一个不覆盖 previous
	require.NoError(t, mgr.SetActive("b"))

	name, err := mgr.RollbackToPrevious()
	require.NoError(t, err)
	assert.Equal(t, "a", name)
	assert.Equal(t, "a", mgr.Active().Name)
}

func TestManager_RollbackAfterPreviousDeleted(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	require.NoError(t, mgr.Add(chatProfile("a")))
	require.NoError(t, mgr.Add(chatProfile("b")))
	require.NoError(t, mgr.Add(chatProfile("c")))

	require.NoError(t, mgr.SetActive("b"))
	require.NoError(t, mgr.SetActive("c"))
	require.NoError(t, mgr.Delete("b"))

	// 上一个已不存在，退到第一个
	name, err := mgr.RollbackToPrevious()
	require.NoError(t, err)
	assert.Equal(t, "a", name)
}

func TestManager_RollbackWithoutProfiles(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	_, err := mgr.RollbackToPrevious()
	assert.ErrorIs(t, err, ErrNoRollback)
}

func TestManager_AddDuplicate(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	require.NoError(t, mgr.Add(chatProfile("dup")))
	err := mgr.Add(chatProfile("dup"))
	assert.ErrorIs(t, err, ErrProfileExists)
}

func TestManager_DeleteRemovesSecret(t *testing.T) {
	mgr, secretStore, _ := newTestManager(t)

	p := chatProfile("gone")
	p.APIKey = "sk-doomed"
	require.NoError(t, mgr.Add(p))
	require.NoError(t, mgr.Delete("gone"))

	_, err := secretStore.Get("gone")
	assert.ErrorIs(t, err, secrets.ErrNotFound)

	// 再删一次：不存在即报错
	assert.ErrorIs(t, mgr.Delete("gone"), ErrProfileNotFound)
}

func TestManager_UpdateMergesFields(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	require.NoError(t, mgr.Add(chatProfile("work")))
	require.NoError(t, mgr.Update(Profile{Name: "work", Model: "gpt-4o"}))

	got, err := mgr.Get("work")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, "https://api.example.com/v1", got.BaseURL)
}

func TestManager_UpdateRejectedLeavesSecretStoreUntouched(t *testing.T) {
	mgr, secretStore, _ := newTestManager(t)

	require.NoError(t, mgr.Add(chatProfile("work")))

	// 合并后缺少 app_id，校验必然失败；携带的密钥不能先写进存储
	err := mgr.Update(Profile{
		Name:     "work",
		Provider: factory.ProviderSignedQuery,
		APIKey:   "sk-should-not-land",
	})
	require.Error(t, err)

	_, err = secretStore.Get("work")
	assert.ErrorIs(t, err, secrets.ErrNotFound)

	// 原有配置档保持不变
	got, err := mgr.Get("work")
	require.NoError(t, err)
	assert.Equal(t, factory.ProviderChatAPI, got.Provider)
}

func TestManager_PersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	secretStore := secrets.NewMemoryStore()

	store, err := OpenStore(path)
	require.NoError(t, err)
	mgr, err := NewManager(store, secretStore)
	require.NoError(t, err)

	require.NoError(t, mgr.Add(chatProfile("kept")))
	require.NoError(t, mgr.SetActive("kept"))

	reopened, err := OpenStore(path)
	require.NoError(t, err)
	mgr2, err := NewManager(reopened, secretStore)
	require.NoError(t, err)

	assert.Equal(t, "kept", mgr2.Active().Name)
}

func TestProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{"valid mock", Profile{Name: "m", Provider: factory.ProviderMock}, false},
		{"missing name", Profile{Provider: factory.ProviderMock}, true},
		{"unknown provider", Profile{Name: "x", Provider: "carrier-pigeon"}, true},
		{"chat without base url", Profile{Name: "x", Provider: factory.ProviderChatAPI, Model: "m"}, true},
		{"chat without model", Profile{Name: "x", Provider: factory.ProviderChatAPI, BaseURL: "https://e"}, true},
		{"local without model", Profile{Name: "x", Provider: factory.ProviderLocalChat, BaseURL: "http://localhost:11434"}, true},
		{"signed without app id", Profile{Name: "x", Provider: factory.ProviderSignedQuery}, true},
		{"valid signed", Profile{Name: "x", Provider: factory.ProviderSignedQuery, AppID: "123"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
