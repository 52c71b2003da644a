// Package topology строит, хранит и восстанавливает деревья jobs.
//
// Один вызов API превращается в Plan (single, chain или fan-out).
// Submit отправляет план в Execution Backend и возвращает Topology:
// дерево узлов с идентификаторами, которые выдал backend. Дерево
// сохраняется в Store под идентификатором корня до того, как этот
// идентификатор увидит клиент.
//
// Позже Reconstructor загружает дерево из Store и запрашивает у backend
// живое состояние каждого узла, собирая вложенный StatusNode.
//
// Форма хранимой записи стабильна между перезапусками:
//
//	{"id": "...", "name": "...", "args": ["..."], "children": [...]}
//
// Формы деревьев:
//
//	single   root
//	chain    root(последняя стадия) → child(первая стадия)
//	fan-out  root(finalize) → leaf₁ … leafₙ
package topology
