// Package dispatcher отпускает finalize jobs Execution Backend.
//
// Finalize job создаётся с AfterGroup и ready=false. Dispatcher слушает
// jobs.completed и после каждого завершения члена группы проверяет группу:
//
//   - есть FAILED  → все ждущие finalize jobs группы переходят в FAILED
//   - все SUCCEEDED → finalize jobs становятся ready и публикуются в jobs.ready
//   - иначе        → ждём дальше
//
// Polling по ждущим finalize jobs подстраховывает потерянные события
// и случай, когда группа завершилась раньше, чем finalize был записан.
package dispatcher
