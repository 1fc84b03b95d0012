package profile

import (
	"errors"
	"fmt"

	"github.com/nerdneilsfield/notebook-translator/internal/secrets"
	"github.com/nerdneilsfield/notebook-translator/pkg/providers/factory"
)

// Manager 配置档的全部操作入口。
// 持久化记录里不保留密钥：Add/Update 收到内联密钥时立即转移到安全存储。
type Manager struct {
	store   *Store
	secrets secrets.Store
}

// NewManager 创建管理器并执行遗留密钥迁移：
// 配置文件里残留的内联 api_key 搬进安全存储，记录抹掉后一次性写回。
// 迁移过程中任何一步失败都保留内联密钥原样，绝不丢失密钥。
func NewManager(store *Store, secretStore secrets.Store) (*Manager, error) {
	m := &Manager{store: store, secrets: secretStore}

	store.mutex.Lock()
	defer store.mutex.Unlock()

	migrated := false
	for i := range store.state.Profiles {
		p := &store.state.Profiles[i]
		if p.APIKey == "" {
			continue
		}
		if err := secretStore.Set(p.Name, p.APIKey); err != nil {
			return nil, fmt.Errorf("failed to migrate secret for profile %s: %w", p.Name, err)
		}
		p.APIKey = ""
		migrated = true
	}
	if migrated {
		if err := store.persistUnsafe(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// List 返回全部配置档；一个都没有时返回内置占位档
func (m *Manager) List() []Profile {
	m.store.mutex.RLock()
	defer m.store.mutex.RUnlock()

	if len(m.store.state.Profiles) == 0 {
		return []Profile{DefaultProfile()}
	}

	out := make([]Profile, len(m.store.state.Profiles))
	copy(out, m.store.state.Profiles)
	return out
}

// Get 按名称查找配置档
func (m *Manager) Get(name string) (Profile, error) {
	m.store.mutex.RLock()
	defer m.store.mutex.RUnlock()

	if i := m.store.findUnsafe(name); i >= 0 {
		return m.store.state.Profiles[i], nil
	}
	return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// Active 返回当前生效的配置档。
// 记录的名称失效时回退到第一个配置档，列表为空时回退到占位档，从不报错。
func (m *Manager) Active() Profile {
	m.store.mutex.RLock()
	defer m.store.mutex.RUnlock()

	if i := m.store.findUnsafe(m.store.state.Active); i >= 0 {
		return m.store.state.Profiles[i]
	}
	if len(m.store.state.Profiles) > 0 {
		return m.store.state.Profiles[0]
	}
	return DefaultProfile()
}

// SetActive 切换当前配置档，只有真正发生切换时才记录上一个
func (m *Manager) SetActive(name string) error {
	m.store.mutex.Lock()
	defer m.store.mutex.Unlock()

	if m.store.findUnsafe(name) < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	if m.store.state.Active != name {
		m.store.state.Previous = m.store.state.Active
		m.store.state.Active = name
	}
	return m.store.persistUnsafe()
}

// RollbackToPrevious 回退到上一个配置档。
// 上一个已被删除时退而求其次用第一个；没有任何可用目标时报错。
// 返回回退后生效的名称。
func (m *Manager) RollbackToPrevious() (string, error) {
	m.store.mutex.Lock()
	defer m.store.mutex.Unlock()

	target := m.store.state.Previous
	if m.store.findUnsafe(target) < 0 {
		if len(m.store.state.Profiles) == 0 {
			return "", ErrNoRollback
		}
		target = m.store.state.Profiles[0].Name
	}

	if m.store.state.Active != target {
		m.store.state.Previous = m.store.state.Active
		m.store.state.Active = target
	}
	if err := m.store.persistUnsafe(); err != nil {
		return "", err
	}
	return target, nil
}

// Add 新增配置档，内联密钥剥离进安全存储
func (m *Manager) Add(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	m.store.mutex.Lock()
	defer m.store.mutex.Unlock()

	if m.store.findUnsafe(p.Name) >= 0 {
		return fmt.Errorf("%w: %s", ErrProfileExists, p.Name)
	}

	if p.APIKey != "" {
		if err := m.secrets.Set(p.Name, p.APIKey); err != nil {
			return fmt.Errorf("failed to store secret for profile %s: %w", p.Name, err)
		}
		p.APIKey = ""
	}

	m.store.state.Profiles = append(m.store.state.Profiles, p)
	return m.store.persistUnsafe()
}

// Update 合并非空字段到已有配置档，内联密钥同样剥离
func (m *Manager) Update(p Profile) error {
	m.store.mutex.Lock()
	defer m.store.mutex.Unlock()

	i := m.store.findUnsafe(p.Name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, p.Name)
	}

	// 先在副本上合并并校验，校验失败时不碰密钥存储和持久化状态
	merged := m.store.state.Profiles[i]
	if p.Provider != "" {
		merged.Provider = p.Provider
	}
	if p.BaseURL != "" {
		merged.BaseURL = p.BaseURL
	}
	if p.Model != "" {
		merged.Model = p.Model
	}
	if p.AppID != "" {
		merged.AppID = p.AppID
	}
	if p.Prompt != "" {
		merged.Prompt = p.Prompt
	}
	if err := merged.Validate(); err != nil {
		return err
	}

	if p.APIKey != "" {
		if err := m.secrets.Set(p.Name, p.APIKey); err != nil {
			return fmt.Errorf("failed to store secret for profile %s: %w", p.Name, err)
		}
	}
	merged.APIKey = ""

	m.store.state.Profiles[i] = merged
	return m.store.persistUnsafe()
}

// Delete 删除配置档及其密钥。
// 密钥删除无条件执行且幂等；删除的是当前档时改指第一个剩余档或清空。
func (m *Manager) Delete(name string) error {
	m.store.mutex.Lock()
	defer m.store.mutex.Unlock()

	i := m.store.findUnsafe(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	if err := m.secrets.Delete(name); err != nil {
		return fmt.Errorf("failed to delete secret for profile %s: %w", name, err)
	}

	m.store.state.Profiles = append(m.store.state.Profiles[:i], m.store.state.Profiles[i+1:]...)

	if m.store.state.Active == name {
		if len(m.store.state.Profiles) > 0 {
			m.store.state.Active = m.store.state.Profiles[0].Name
		} else {
			m.store.state.Active = ""
		}
	}
	if m.store.state.Previous == name {
		m.store.state.Previous = ""
	}
	return m.store.persistUnsafe()
}

// GetSecret 读取配置档的密钥，未配置时返回 secrets.ErrNotFound
func (m *Manager) GetSecret(name string) (string, error) {
	return m.secrets.Get(name)
}

// SetSecret 写入配置档的密钥
func (m *Manager) SetSecret(name, value string) error {
	return m.secrets.Set(name, value)
}

// DeleteSecret 删除配置档的密钥，幂等
func (m *Manager) DeleteSecret(name string) error {
	return m.secrets.Delete(name)
}

// ProviderOptions 把配置档换算成后端构建参数，附带从安全存储取出的密钥。
// 密钥缺失是合法状态，由后端在真正需要时报 ErrMissingCredential。
func (m *Manager) ProviderOptions(p Profile) (factory.Options, error) {
	secret, err := m.secrets.Get(p.Name)
	if err != nil && !errors.Is(err, secrets.ErrNotFound) {
		return factory.Options{}, fmt.Errorf("failed to read secret for profile %s: %w", p.Name, err)
	}
	return factory.Options{
		Provider:    p.Provider,
		Endpoint:    p.BaseURL,
		Model:       p.Model,
		AppID:       p.AppID,
		Instruction: p.Prompt,
		Secret:      secret,
	}, nil
}
