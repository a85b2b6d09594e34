package user

import "github.com/savsata/gundem/internal/model"

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// remove はvに一致する要素を全て取り除く。
func remove(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	if contains(list, v) {
		return list
	}
	return append(list, v)
}

func containsID(list []model.ID, id model.ID) bool {
	for _, x := range list {
		if x == id {
			return true
		}
	}
	return false
}

func removeID(list []model.ID, id model.ID) []model.ID {
	out := make([]model.ID, 0, len(list))
	for _, x := range list {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
