// Package comment は記事コメントの投稿とスレッド構築を提供する。
package comment

import (
	"github.com/savsata/gundem/internal/model"
)

// BuildThread はフラットなコメント一覧を返信ツリーに変換する。
//
// ルートと各ノードの返信は入力順を保つ。親が入力内に見つからないコメントと自分自身を
// 親とするコメントはルートになる。親参照の循環は、循環を閉じる側のコメントをルートにして
// 切断し ThreadIssueCycle を報告する。
//
// maxDepth が正の場合、ルートを深さ0として maxDepth より深いノードは深さ maxDepth-1 の
// 祖先の返信として前順に平坦化し、ThreadIssueDepthExceeded を報告する。
// 再帰を使わないため、入力の形に関わらずスタック使用量は一定に収まる。
func BuildThread(comments []model.Comment, maxDepth int) ([]*model.ThreadNode, []model.ThreadIssue) {
	n := len(comments)
	nodes := make([]*model.ThreadNode, n)
	index := make(map[model.ID]int, n)
	for i := range comments {
		nodes[i] = &model.ThreadNode{Comment: comments[i], Replies: []*model.ThreadNode{}}
		if _, dup := index[comments[i].ID]; !dup {
			index[comments[i].ID] = i
		}
	}

	// 1. 親を解決する
	parent := make([]int, n)
	for i := range comments {
		parent[i] = -1
		if !comments[i].HasParent() {
			continue
		}
		if j, ok := index[*comments[i].ParentID]; ok && j != i {
			parent[i] = j
		}
	}

	// 2. 循環を切断する
	var issues []model.ThreadIssue
	const (
		unvisited = iota
		onPath
		done
	)
	state := make([]int, n)
	path := make([]int, 0, 16)
	for i := 0; i < n; i++ {
		if state[i] != unvisited {
			continue
		}
		path = path[:0]
		cur := i
		for cur >= 0 && state[cur] == unvisited {
			state[cur] = onPath
			path = append(path, cur)
			cur = parent[cur]
		}
		if cur >= 0 && state[cur] == onPath {
			closing := path[len(path)-1]
			parent[closing] = -1
			issues = append(issues, model.ThreadIssue{Kind: model.ThreadIssueCycle, CommentID: nodes[closing].ID})
		}
		for _, p := range path {
			state[p] = done
		}
	}

	children := make([][]int, n)
	var rootIdx []int
	for i := 0; i < n; i++ {
		if parent[i] < 0 {
			rootIdx = append(rootIdx, i)
			continue
		}
		children[parent[i]] = append(children[parent[i]], i)
	}

	// 3. 前順に走査しながら返信を付け替える
	type frame struct {
		idx    int
		depth  int
		anchor int
	}
	roots := make([]*model.ThreadNode, 0, len(rootIdx))
	stack := make([]frame, 0, 16)
	for _, r := range rootIdx {
		roots = append(roots, nodes[r])
		stack = append(stack[:0], frame{idx: r, depth: 0, anchor: -1})
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if f.depth > 0 {
				target := parent[f.idx]
				if maxDepth > 0 && f.depth > maxDepth {
					target = f.anchor
					issues = append(issues, model.ThreadIssue{Kind: model.ThreadIssueDepthExceeded, CommentID: nodes[f.idx].ID})
				}
				nodes[target].Replies = append(nodes[target].Replies, nodes[f.idx])
			}

			anchor := f.anchor
			if maxDepth > 0 && f.depth == maxDepth-1 {
				anchor = f.idx
			}
			kids := children[f.idx]
			for k := len(kids) - 1; k >= 0; k-- {
				stack = append(stack, frame{idx: kids[k], depth: f.depth + 1, anchor: anchor})
			}
		}
	}

	return roots, issues
}

// Flatten はツリーを前順に走査してコメント一覧に戻す。
func Flatten(roots []*model.ThreadNode) []model.Comment {
	var out []model.Comment
	stack := make([]*model.ThreadNode, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, node.Comment)
		for i := len(node.Replies) - 1; i >= 0; i-- {
			stack = append(stack, node.Replies[i])
		}
	}
	return out
}
