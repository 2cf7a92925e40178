package access

// Action 习惯资源上的操作
type Action string

// 操作常量
const (
	ActionList          Action = "list"
	ActionCreate        Action = "create"
	ActionRetrieve      Action = "retrieve"
	ActionUpdate        Action = "update"
	ActionPartialUpdate Action = "partial_update"
	ActionDestroy       Action = "destroy"
)

// Actions 所有已定义的操作
var Actions = []Action{
	ActionList,
	ActionCreate,
	ActionRetrieve,
	ActionUpdate,
	ActionPartialUpdate,
	ActionDestroy,
}

// Known 判断操作是否在权限表中
func (a Action) Known() bool {
	_, ok := requirements[a]
	return ok
}

func (a Action) String() string {
	return string(a)
}
