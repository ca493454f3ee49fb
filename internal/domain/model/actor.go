package model

// 認証済みの操作主体（customer / store）
type ActorType string

const (
	ActorCustomer ActorType = "customer"
	ActorStore    ActorType = "store"
)

func (t ActorType) Valid() bool {
	return t == ActorCustomer || t == ActorStore
}

// Actor は認証レイヤが解決した「誰か」。
// どちらの種類でも Type と ID だけで扱う。
type Actor struct {
	Type ActorType `json:"type"`
	ID   int64     `json:"id"`
}

func (a Actor) IsCustomer() bool { return a.Type == ActorCustomer && a.ID > 0 }
func (a Actor) IsStore() bool    { return a.Type == ActorStore && a.ID > 0 }
