// Package bot реализует чат-бота поверх клиента blacket. Бот:
//   - слушает messages-create и отвечает на команды с префиксом
//     (!help, !ping, !user, !clan, !booster, !edits, !watch);
//   - следит за составом кланов из списка и объявляет в комнату, кто
//     вступил и кто вышел;
//   - хранит список кланов в JSON-файле, команды !watch сразу его сохраняют.
//
// Жизненный цикл:
//   - bot.New(client, cfg, log): до или после Connect клиента;
//   - Start() подписывается на события и запускает опрос кланов;
//   - Stop() снимает подписки и ждёт начатые команды.
//
// Пример:
//
//	b, err := bot.New(c, bot.Config{Prefix: "!", WatchFile: "conf/watch.json"}, log)
//	if err != nil { log.Fatal(err) }
//	if err := b.Start(); err != nil { log.Fatal(err) }
//	defer b.Stop()
package bot
