package blacket

import (
	"fmt"
	"net/url"
)

const (
	pathLogin = "/worker/login"
	pathOpen  = "/worker3/open"
	pathSell  = "/worker/sell"
	pathUse   = "/worker/use"
	pathData  = "/data/index.json"
)

// пустой idOrName: текущий пользователь
func pathUser(idOrName string) string {
	return "/worker2/user/" + url.PathEscape(idOrName)
}

func pathClan(id int64) string {
	return fmt.Sprintf("/worker/clans/%d", id)
}

func pathMessageEdit(id int64) string {
	return fmt.Sprintf("/worker/messages/%d/edit", id)
}

func pathMessageDelete(id int64) string {
	return fmt.Sprintf("/worker/messages/%d/delete", id)
}
