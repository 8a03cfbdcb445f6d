// Package call реализует клиентскую модель звонков и конференций
// поверх внешнего телефонного демона.
//
// Ядро пакета — конечный автомат звонка с двумя таблицами переходов:
// действия пользователя (Accept, Refuse, Transfer, Hold, Record) и
// события демона (Ringing, Current, Busy, Hold, HungUp, Failure).
// Каждое состояние принадлежит ровно одному мета-состоянию жизненного
// цикла (Initialization → Progress → Finished); переход, нарушающий
// монотонность цикла, принудительно переводит звонок в Error — паник
// в машине состояний нет ни на каком входе.
//
// CallModel владеет всеми живыми звонками и конференциями и держит
// двухуровневое дерево: самостоятельные звонки и конференции наверху,
// участники — детьми конференций. Состав конференций сверяется с
// отчётами демона (Reconcile); демон всегда прав.
//
// Engine сериализует все мутации на одной горутине через очередь
// задач: события демона, исходы команд и намерения пользователя
// публикуются неблокирующе и разбираются по одному. Команды демону
// асинхронные, их провал катит звонок вперёд по жизненному циклу
// (Error или Over), но никогда назад.
package call
